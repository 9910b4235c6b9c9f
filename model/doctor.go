package model

// Doctor is a verification list row as served by the upstream backend.
// The backend owns these records; this application never mutates them
// directly.
type Doctor struct {
	UserID           string `json:"userId"`
	Email            string `json:"email"`
	DisplayName      string `json:"displayName"`
	PhotoURL         string `json:"photoURL"`
	ProfessionalName string `json:"professionalName"`
	DisplayEmail     string `json:"displayEmail"`
	ProfileStatus    string `json:"profileStatus"`
	SubmittedAt      string `json:"submittedAt"`
}

// Known profile statuses. The set is open: unknown values coming from the
// backend are passed through untouched.
const (
	StatusIncomplete = "incomplete"
	StatusInReview   = "in_review"
	StatusApproved   = "approved"
	StatusRejected   = "rejected"
)

// DocumentURL is one submitted credential document.
type DocumentURL struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Type string `json:"type"`
}

// Declared credential document types, in display order.
const (
	DocTypeProfessional     = "certificado_profesional"
	DocTypeSuperintendencia = "certificado_superintendencia_salud"
	DocTypeRegistroSanitario = "registro_sanitario"
)

// DocTypeOrder is the fixed presentation order for credential documents.
var DocTypeOrder = []string{
	DocTypeProfessional,
	DocTypeSuperintendencia,
	DocTypeRegistroSanitario,
}

// DayAvailability is a single weekday entry of a doctor's availability map.
type DayAvailability struct {
	Available bool   `json:"available"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

// DoctorDetail extends Doctor with the submitted credential documents and
// review metadata.
type DoctorDetail struct {
	Doctor
	DocumentURLs  []DocumentURL              `json:"documentUrls"`
	Phone         string                     `json:"phone"`
	Address       string                     `json:"address"`
	Tags          []string                   `json:"tags"`
	Availability  map[string]DayAvailability `json:"availability"`
	ReviewMessage string                     `json:"reviewMessage"`
	ReviewedAt    string                     `json:"reviewedAt"`
	ReviewedBy    string                     `json:"reviewedBy"`
}

// Counts is the per-status snapshot used by the stat cards. Values are
// refreshed on every list fetch and play no part in pagination correctness.
type Counts struct {
	Incomplete int `json:"incomplete"`
	InReview   int `json:"in_review"`
	Approved   int `json:"approved"`
	Rejected   int `json:"rejected"`
}

// PaginationCursors is the cursor block of an upstream list response. The
// pageSize field is a request echo; the request parameter is `limit`.
type PaginationCursors struct {
	AfterCursor  string `json:"afterCursor"`
	BeforeCursor string `json:"beforeCursor"`
	PageSize     int    `json:"pageSize"`
}

// DoctorPage is a decoded upstream list response page.
type DoctorPage struct {
	Doctors    []Doctor
	Pagination *PaginationCursors
	Counts     *Counts
}
