package api

// Election is a server-managed election record. The API identifies records
// by a server-assigned `_id`; drafts are sent without one.
type Election struct {
	ID          string `json:"_id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
}

// ResourceID implements Resource.
func (e Election) ResourceID() string { return e.ID }

// Candidate belongs to exactly one parent election; all candidate calls are
// scoped by the election id.
type Candidate struct {
	ID         string `json:"_id,omitempty"`
	Name       string `json:"name"`
	Party      string `json:"party"`
	ElectionID string `json:"electionId,omitempty"`
}

// ResourceID implements Resource.
func (c Candidate) ResourceID() string { return c.ID }

// User is the identity record returned by validate-login.
type User struct {
	ID    string `json:"_id,omitempty"`
	Email string `json:"email"`
	Role  string `json:"role"`
}
