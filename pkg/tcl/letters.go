package tcl

// CreateLetter creates a first class letter without print options. The UniqueDocID is
// generated during validation.
func CreateLetter(documentPath string, pageCount int, recipient, sender *Address) *Letter {
	return &Letter{
		MailType:     MailTypeFirstClass,
		PageCount:    pageCount,
		DocumentPath: documentPath,
		Recipient:    recipient,
		Sender:       sender,
	}
}

// CreateMockLetter creates a complete letter for documentPath with a fixed id, for tests and examples.
func CreateMockLetter(uniqueDocID, documentPath string) *Letter {
	return &Letter{
		UniqueDocID:  uniqueDocID,
		MailType:     MailTypeFirstClass,
		PageCount:    1,
		DocumentPath: documentPath,
		Recipient: &Address{
			Name1: "M. Bison",
			Addr1: "1 Shadaloo Way",
			Addr2: "Suite 2",
			City:  "Bangkok",
			State: "NY",
			Zip:   "10001",
		},
		Sender: &Address{
			Name1: "Guile",
			Name2: "Air Force",
			Addr1: "100 Sonic Boom Blvd",
			City:  "Portland",
			State: "OR",
			Zip:   "97201",
		},
		Options: &PrintOptions{
			Duplex: true,
			Ink:    InkBlack,
			Paper:  PaperWhite,
		},
	}
}
