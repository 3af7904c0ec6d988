package tcl

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// ManifestColumns is the ordered column schema the print api expects. Do not reorder.
var ManifestColumns = []string{
	"UniqueDocId", "PDFFileName",
	"RecipientName1", "RecipientName2", "RecipientAddr1", "RecipientAddr2", "RecipientCity", "RecipientState", "RecipientZip",
	"SenderName1", "SenderName2", "SenderAddr1", "SenderAddr2", "SenderCity", "SenderState", "SenderZip",
	"PageCount", "MailType",
	"CoverSheet", "Duplex", "Ink", "Paper", "Return Envelope", "Affidavit",
}

// ManifestRow is one letter of a batch manifest.
type ManifestRow struct {
	UniqueDocID    string
	PDFFileName    string
	Recipient      Address
	Sender         Address
	PageCount      int
	MailType       string
	CoverSheet     bool
	Duplex         bool
	Ink            string
	Paper          string
	ReturnEnvelope bool
	Affidavit      bool
}

// NewManifestRow builds the manifest row of a validated letter.
func NewManifestRow(letter *Letter) ManifestRow {

	options := letter.printOptions()
	row := ManifestRow{
		UniqueDocID:    letter.UniqueDocID,
		PDFFileName:    letter.DocumentFileName,
		PageCount:      letter.PageCount,
		MailType:       letter.MailType,
		CoverSheet:     options.CoverSheet,
		Duplex:         options.Duplex,
		Ink:            options.Ink,
		Paper:          options.Paper,
		ReturnEnvelope: options.ReturnEnvelope,
		Affidavit:      options.Affidavit,
	}

	if letter.Recipient != nil {
		row.Recipient = *letter.Recipient
	}
	if letter.Sender != nil {
		row.Sender = *letter.Sender
	}
	if row.Ink == "" {
		row.Ink = InkBlack
	}
	if row.Paper == "" {
		row.Paper = PaperWhite
	}

	return row
}

// Values returns the row in ManifestColumns order.
func (row ManifestRow) Values() []string {
	return []string{
		row.UniqueDocID, row.PDFFileName,
		row.Recipient.Name1, row.Recipient.Name2, row.Recipient.Addr1, row.Recipient.Addr2,
		row.Recipient.City, row.Recipient.State, row.Recipient.Zip,
		row.Sender.Name1, row.Sender.Name2, row.Sender.Addr1, row.Sender.Addr2,
		row.Sender.City, row.Sender.State, row.Sender.Zip,
		strconv.Itoa(row.PageCount), row.MailType,
		yesNo(row.CoverSheet), yesNo(row.Duplex), row.Ink, row.Paper, yesNo(row.ReturnEnvelope), yesNo(row.Affidavit),
	}
}

// WriteManifest writes the header and one row per letter as CSV.
func WriteManifest(w io.Writer, rows []ManifestRow) error {

	writer := csv.NewWriter(w)
	if err := writer.Write(ManifestColumns); err != nil {
		return err
	}

	for _, row := range rows {
		if err := writer.Write(row.Values()); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// ParseManifest reads a manifest written by WriteManifest.
func ParseManifest(r io.Reader) ([]ManifestRow, error) {

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(ManifestColumns)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read manifest header: %w", err)
	}

	for i, column := range ManifestColumns {
		if header[i] != column {
			return nil, fmt.Errorf("manifest column %d is %q, expected %q", i, header[i], column)
		}
	}

	rows := make([]ManifestRow, 0)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		pageCount, err := strconv.Atoi(record[16])
		if err != nil {
			return nil, fmt.Errorf("manifest row %q has invalid PageCount: %w", record[0], err)
		}

		rows = append(rows, ManifestRow{
			UniqueDocID:    record[0],
			PDFFileName:    record[1],
			Recipient:      Address{Name1: record[2], Name2: record[3], Addr1: record[4], Addr2: record[5], City: record[6], State: record[7], Zip: record[8]},
			Sender:         Address{Name1: record[9], Name2: record[10], Addr1: record[11], Addr2: record[12], City: record[13], State: record[14], Zip: record[15]},
			PageCount:      pageCount,
			MailType:       record[17],
			CoverSheet:     record[18] == "Y",
			Duplex:         record[19] == "Y",
			Ink:            record[20],
			Paper:          record[21],
			ReturnEnvelope: record[22] == "Y",
			Affidavit:      record[23] == "Y",
		})
	}

	return rows, nil
}

func yesNo(b bool) string {
	if b {
		return "Y"
	}
	return "N"
}
