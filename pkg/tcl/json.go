package tcl

import (
	"bytes"
	"os"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ConvertJSONFileToConfig opens a file.json and converts to LetterSeasoning.
func ConvertJSONFileToConfig(fileNamePath string) (*LetterSeasoning, error) {

	byteValue, err := os.ReadFile(fileNamePath)
	if err != nil {
		return nil, err
	}

	config := &LetterSeasoning{}
	err = json.Unmarshal(byteValue, config)

	return config, err
}

// ConvertYAMLFileToConfig opens a file.yaml and converts to LetterSeasoning.
func ConvertYAMLFileToConfig(fileNamePath string) (*LetterSeasoning, error) {

	byteValue, err := os.ReadFile(fileNamePath)
	if err != nil {
		return nil, err
	}

	config := &LetterSeasoning{}
	err = yaml.Unmarshal(byteValue, config)

	return config, err
}

// CreatePayload creates a JSON marshal and optionally compresses and encrypts the bytes.
func CreatePayload(input interface{}, compression *CompressionConfig, encryption *EncryptionConfig) ([]byte, error) {

	data, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}

	buffer := &bytes.Buffer{}
	if compression != nil && compression.Enabled {
		if err := handleCompression(compression, data, buffer); err != nil {
			return nil, err
		}

		data = buffer.Bytes()
	}

	if encryption != nil && encryption.Enabled {
		if err := handleEncryption(encryption, data, buffer); err != nil {
			return nil, err
		}

		data = buffer.Bytes()
	}

	return data, nil
}

// ReadPayload decrypts and decompresses a payload made by CreatePayload and unmarshals it into output.
func ReadPayload(data []byte, output interface{}, compression *CompressionConfig, encryption *EncryptionConfig) error {

	buffer := bytes.NewBuffer(data)

	if encryption != nil && encryption.Enabled {
		if err := handleDecryption(encryption, buffer); err != nil {
			return err
		}
	}

	if compression != nil && compression.Enabled {
		if err := handleDecompression(compression, buffer); err != nil {
			return err
		}
	}

	return json.Unmarshal(buffer.Bytes(), output)
}
