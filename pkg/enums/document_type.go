package enums

import "fmt"

// DocumentType distinguishes sales from quotes.
type DocumentType string

const (
	DocumentSale  DocumentType = "sale"
	DocumentQuote DocumentType = "quote"
)

var validDocumentTypes = []DocumentType{
	DocumentSale,
	DocumentQuote,
}

// String implements fmt.Stringer.
func (d DocumentType) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DocumentType.
func (d DocumentType) IsValid() bool {
	for _, candidate := range validDocumentTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// CodePrefix is the display-code prefix for the document type.
func (d DocumentType) CodePrefix() string {
	if d == DocumentQuote {
		return "O"
	}
	return "V"
}

// ParseDocumentType converts raw input into a DocumentType.
func ParseDocumentType(value string) (DocumentType, error) {
	for _, candidate := range validDocumentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid document type %q", value)
}
