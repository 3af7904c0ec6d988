package tcl

// LetterSeasoning represents the configuration values.
type LetterSeasoning struct {
	ClientConfig     *ClientConfig   `json:"ClientConfig" yaml:"ClientConfig"`
	ModeConfig       *ModeConfig     `json:"ModeConfig" yaml:"ModeConfig"`
	QueueConfig      *QueueConfig    `json:"QueueConfig" yaml:"QueueConfig"`
	NotifierConfig   *NotifierConfig `json:"NotifierConfig" yaml:"NotifierConfig"`
	ArchiveConfig    *ArchiveConfig  `json:"ArchiveConfig" yaml:"ArchiveConfig"`
	RequeueOnFailure bool            `json:"RequeueOnFailure" yaml:"RequeueOnFailure"` // at-least-once when true
	LogLevel         string          `json:"LogLevel" yaml:"LogLevel"` // for NewLogger
}

// ClientConfig represents settings for talking to the print api.
type ClientConfig struct {
	APIID          string `json:"APIID" yaml:"APIID"`
	APIKey         string `json:"APIKey" yaml:"APIKey"`
	APIUser        string `json:"APIUser" yaml:"APIUser"` // alias of APIID
	APIPass        string `json:"APIPass" yaml:"APIPass"` // alias of APIKey
	BaseURL        string `json:"BaseURL" yaml:"BaseURL"`
	Debug          int    `json:"Debug" yaml:"Debug"`                   // 0 (off), 1, 2 or 3
	RequestTimeout uint32 `json:"RequestTimeout" yaml:"RequestTimeout"` // milliseconds
}

// ModeConfig selects what triggers a flush of the queue.
type ModeConfig struct {
	SendOn string `json:"SendOn" yaml:"SendOn"` // letter_created, filecount_limit, filesize_limit, interval
	Value  int64  `json:"Value" yaml:"Value"`   // count, bytes or seconds
}

// QueueConfig selects and configures the queue storage backend.
type QueueConfig struct {
	Type              string             `json:"Type" yaml:"Type"` // memory (default), postgres, redis, file
	DSN               string             `json:"DSN" yaml:"DSN"`
	Table             string             `json:"Table" yaml:"Table"`
	RedisAddr         string             `json:"RedisAddr" yaml:"RedisAddr"`
	RedisPassword     string             `json:"RedisPassword" yaml:"RedisPassword"`
	RedisDB           int                `json:"RedisDB" yaml:"RedisDB"`
	KeyPrefix         string             `json:"KeyPrefix" yaml:"KeyPrefix"`
	FilePath          string             `json:"FilePath" yaml:"FilePath"`
	CompressionConfig *CompressionConfig `json:"CompressionConfig" yaml:"CompressionConfig"`
	EncryptionConfig  *EncryptionConfig  `json:"EncryptionConfig" yaml:"EncryptionConfig"`
}

// NotifierConfig allows flush receipts to be forwarded to a RabbitMQ exchange.
type NotifierConfig struct {
	Enabled    bool   `json:"Enabled" yaml:"Enabled"`
	URI        string `json:"URI" yaml:"URI"`
	Exchange   string `json:"Exchange" yaml:"Exchange"`
	RoutingKey string `json:"RoutingKey" yaml:"RoutingKey"`

	DeclareExchange bool   `json:"DeclareExchange" yaml:"DeclareExchange"`
	ExchangeType    string `json:"ExchangeType" yaml:"ExchangeType"` // "direct", "fanout", "topic", "headers"
}

// ArchiveConfig allows every packaged batch archive to be retained in S3.
type ArchiveConfig struct {
	Enabled bool   `json:"Enabled" yaml:"Enabled"`
	Bucket  string `json:"Bucket" yaml:"Bucket"`
	Prefix  string `json:"Prefix" yaml:"Prefix"`
	Region  string `json:"Region" yaml:"Region"`
}

// CompressionConfig allows stored letters to be compressed based on options.
type CompressionConfig struct {
	Enabled bool   `json:"Enabled" yaml:"Enabled"`
	Type    string `json:"Type,omitempty" yaml:"Type,omitempty"`
}

// EncryptionConfig allows you to configuration symmetric key encryption of stored letters based on options.
type EncryptionConfig struct {
	Enabled           bool   `json:"Enabled" yaml:"Enabled"`
	Type              string `json:"Type,omitempty" yaml:"Type,omitempty"`
	Passphrase        string `json:"Passphrase,omitempty" yaml:"Passphrase,omitempty"`
	Salt              string `json:"Salt,omitempty" yaml:"Salt,omitempty"`
	Hashkey           []byte `json:"-" yaml:"-"`
	TimeConsideration uint32 `json:"TimeConsideration,omitempty" yaml:"TimeConsideration,omitempty"`
	MemoryMultiplier  uint32 `json:"MemoryMultiplier,omitempty" yaml:"MemoryMultiplier,omitempty"`
	Threads           uint8  `json:"Threads,omitempty" yaml:"Threads,omitempty"`
}

// credentials resolves the api id/key pair, falling back to the user/pass aliases.
func (cc *ClientConfig) credentials() (string, string, error) {

	id, key := cc.APIID, cc.APIKey
	if id == "" {
		id = cc.APIUser
	}
	if key == "" {
		key = cc.APIPass
	}

	if id == "" || key == "" {
		return "", "", ErrMissingCredentials
	}

	return id, key, nil
}
