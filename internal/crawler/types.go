// Package crawler defines core types shared across subsystems.
package crawler

import "time"

// Gender mirrors the pq_gender enum.
type Gender string

// Gender values as stored in the database.
const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

// DepartmentType tells whether an office belongs to a Seimas unit or a parliamentary group.
type DepartmentType string

// Department types as stored in the pq_department_type enum.
const (
	DepartmentOffice DepartmentType = "Office"
	DepartmentGroup  DepartmentType = "Group"
)

// VoteType mirrors the pq_vote_type enum.
type VoteType string

// Individual vote values.
const (
	VoteFor     VoteType = "For"
	VoteAgainst VoteType = "Against"
	VoteAbstain VoteType = "Abstain"
)

// Parliament is one parliamentary term. Rows are never updated once written.
type Parliament struct {
	ID   int32
	Name *string
	From *time.Time
	To   *time.Time
}

// Politician is a member of one parliament term, keyed by (ID, Parliament).
type Politician struct {
	ID            int32
	Parliament    int32
	Name          string
	Surname       string
	Gender        *Gender
	From          *time.Time
	To            *time.Time
	Party         *string
	ElectedType   *string
	BiographyLink *string
	TermCount     *int32
	Email         *string
	Phone         []string
	Website       *string
	Offices       []int32
}

// Office is a position held by a politician. The ID is assigned by the store.
type Office struct {
	ID             int32
	DepartmentID   *int32
	DepartmentName *string
	DepartmentType *DepartmentType
	Duties         *string
	From           *time.Time
	To             *time.Time
}

// Session is a parliamentary session within a term.
type Session struct {
	ID         int32
	Num        int32
	Name       string
	From       *time.Time
	To         *time.Time
	Parliament int32
}

// Meeting is a single sitting within a session.
type Meeting struct {
	ID            int32
	Num           int32
	Type          string
	From          *time.Time
	To            *time.Time
	Session       int32
	ProtocolLink  *string
	StenogramLink *string
	VideoComment  *string
	VideoLink     *string
}

// MeetingData holds the detail of a meeting and references its agenda items and registrations.
type MeetingData struct {
	ID            int32
	From          *time.Time
	To            *time.Time
	Agenda        []int32
	Registrations []int32
}

// AgendaItem is one question discussed in a meeting.
type AgendaItem struct {
	ID            int32
	AgendaStateID *int32
	AgendaGroupID *int32
	DocumentKey   *int32
	Nr            *string
	Name          *string
	State         *string
	Type          *string
	From          *time.Time
	To            *time.Time
	Speeches      []int32
	Voting        []int32
}

// Vote is a voting event. Per-person results live in VoteData.
type Vote struct {
	ID      int32
	Summary *string
	Result  *string
	From    *time.Time
	To      *time.Time
}

// VoteData is how one person voted, keyed by (ID, PersonID).
type VoteData struct {
	ID       int32
	PersonID int32
	Vote     *VoteType
}

// Speech is one speaker turn within an agenda item.
type Speech struct {
	ID           int32
	DiscussionID *int32
	PersonID     *int32
	Person       *string
	Office       *string
	From         *time.Time
	To           *time.Time
}

// Registration is a roll-call event. Per-person results live in RegistrationData.
type Registration struct {
	ID     int32
	Result *string
	From   *time.Time
	To     *time.Time
}

// RegistrationData records whether one person registered, keyed by (ID, PersonID).
// A nil Registered means the feed gave no answer.
type RegistrationData struct {
	ID         int32
	PersonID   int32
	Registered *bool
}

// DocumentKind names a downloadable meeting document.
type DocumentKind string

// Document kinds linked from a meeting.
const (
	DocumentProtocol  DocumentKind = "protocol"
	DocumentStenogram DocumentKind = "stenogram"
)

// DocumentLinks are the document references stored on one meeting row.
type DocumentLinks struct {
	SessionID     int32
	MeetingNum    int32
	ProtocolLink  *string
	StenogramLink *string
}

// DocumentRef identifies one document to materialize.
type DocumentRef struct {
	Kind       DocumentKind
	Link       string
	SessionID  int32
	MeetingNum int32
}

// StageReport summarizes one finished orchestrator stage.
type StageReport struct {
	RunID      string    `json:"run_id"`
	Stage      string    `json:"stage"`
	Tasks      int       `json:"tasks"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
