package tcl

// Mail types understood by the print api.
const (
	MailTypeFirstClass = "firstclass"
	MailTypeCertified  = "certified"
	MailTypeCertNoRR   = "certnoerr"
	MailTypePostcard   = "postcard"
	MailTypeFlat       = "flat"
)

// Ink and paper defaults used in the manifest when a letter leaves them blank.
const (
	InkBlack   = "B"
	InkColor   = "C"
	PaperWhite = "W"
)

// Letter is a single print job. It must not be modified once queued.
type Letter struct {
	UniqueDocID      string        `json:"UniqueDocID"`
	MailType         string        `json:"MailType"`
	PageCount        int           `json:"PageCount"`
	DocumentPath     string        `json:"DocumentPath"`
	DocumentFileName string        `json:"DocumentFileName"`
	FileSize         int64         `json:"FileSize"` // set during validation
	Recipient        *Address      `json:"Recipient"`
	Sender           *Address      `json:"Sender"`
	Options          *PrintOptions `json:"Options,omitempty"`
}

// Address contains a postal address block.
type Address struct {
	Name1 string `json:"Name1"`
	Name2 string `json:"Name2,omitempty"`
	Addr1 string `json:"Addr1"`
	Addr2 string `json:"Addr2,omitempty"`
	City  string `json:"City"`
	State string `json:"State"`
	Zip   string `json:"Zip"`
}

// PrintOptions are the optional print settings of a letter.
type PrintOptions struct {
	CoverSheet     bool   `json:"CoverSheet"`
	Duplex         bool   `json:"Duplex"`
	Ink            string `json:"Ink,omitempty"`
	Paper          string `json:"Paper,omitempty"`
	ReturnEnvelope bool   `json:"ReturnEnvelope"`
	Affidavit      bool   `json:"Affidavit"`
}

// printOptions never returns nil.
func (l *Letter) printOptions() *PrintOptions {
	if l.Options == nil {
		return &PrintOptions{}
	}

	return l.Options
}

// clone returns a deep copy so a queued letter never shares memory with the caller's.
func (l *Letter) clone() *Letter {

	letter := *l
	if l.Recipient != nil {
		recipient := *l.Recipient
		letter.Recipient = &recipient
	}
	if l.Sender != nil {
		sender := *l.Sender
		letter.Sender = &sender
	}
	if l.Options != nil {
		options := *l.Options
		letter.Options = &options
	}

	return &letter
}
