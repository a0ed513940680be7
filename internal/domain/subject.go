package domain

import "fmt"

// SubjectKind tags what an order pays for. One adapter per kind implements
// the mark-paid hook; the order record itself stays kind-agnostic.
type SubjectKind string

const (
	SubjectListing        SubjectKind = "listing"
	SubjectLead           SubjectKind = "lead"
	SubjectWebsiteRequest SubjectKind = "website_request"
)

// SubjectRef is a tagged reference to the business object being paid for.
type SubjectRef struct {
	Kind SubjectKind `json:"kind"`
	ID   string      `json:"id"`
}

func (r SubjectRef) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

// Valid reports whether the kind is one of the known subject kinds and the id
// is non-empty.
func (r SubjectRef) Valid() bool {
	if r.ID == "" {
		return false
	}
	switch r.Kind {
	case SubjectListing, SubjectLead, SubjectWebsiteRequest:
		return true
	}
	return false
}
