package gateway

import (
	"time"

	"github.com/smartlab/smartlab/internal/platform/auth"
	"github.com/smartlab/smartlab/pkg/pagination"
)

// User is the account record shared by every role. Patient-only and
// staff-only sub-records are optional.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      auth.Role `json:"role"`
	Phone     string    `json:"phone,omitempty"`

	// Patient-only sub-records.
	Medical   *MedicalInfo   `json:"medicalInfo,omitempty"`
	Insurance *InsuranceInfo `json:"insuranceInfo,omitempty"`

	// Staff-only attributes.
	Department string `json:"department,omitempty"`
	EmployeeID string `json:"employeeId,omitempty"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// FullName returns the display name.
func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

type MedicalInfo struct {
	BloodGroup     string `json:"bloodGroup,omitempty"`
	MedicalHistory string `json:"medicalHistory,omitempty"`
	Allergies      string `json:"allergies,omitempty"`
	Medications    string `json:"medications,omitempty"`
}

type InsuranceInfo struct {
	Provider     string `json:"provider,omitempty"`
	PolicyNumber string `json:"policyNumber,omitempty"`
	ValidUntil   string `json:"validUntil,omitempty"`
}

// Patient is the receptionist-facing patient record.
type Patient struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId,omitempty"`
	FirstName string         `json:"firstName"`
	LastName  string         `json:"lastName"`
	Email     string         `json:"email"`
	Phone     string         `json:"phone,omitempty"`
	Address   string         `json:"address,omitempty"`
	Medical   *MedicalInfo   `json:"medicalInfo,omitempty"`
	Insurance *InsuranceInfo `json:"insuranceInfo,omitempty"`
	CreatedAt time.Time      `json:"createdAt,omitempty"`
}

// HomeCollection is the appointment sub-workflow where a collector visits
// the patient address. It carries its own approval sub-state.
type HomeCollection struct {
	Requested         bool   `json:"requested"`
	Approved          *bool  `json:"approved,omitempty"`
	CollectionDate    string `json:"collectionDate,omitempty"`
	CollectionTime    string `json:"collectionTime,omitempty"`
	AssignedCollector string `json:"assignedCollector,omitempty"`
	Notes             string `json:"notes,omitempty"`
	ApprovedBy        string `json:"approvedBy,omitempty"`
}

type Appointment struct {
	ID             string          `json:"id"`
	PatientID      string          `json:"patientId"`
	PatientName    string          `json:"patientName,omitempty"`
	TestType       string          `json:"testType"`
	Date           string          `json:"date"`
	Time           string          `json:"time"`
	Status         string          `json:"status"`
	Notes          string          `json:"notes,omitempty"`
	RejectReason   string          `json:"rejectReason,omitempty"`
	ReceptionistID string          `json:"receptionistId,omitempty"`
	HomeCollection *HomeCollection `json:"homeCollection,omitempty"`
	CreatedAt      time.Time       `json:"createdAt,omitempty"`
}

type Report struct {
	ID          string    `json:"id"`
	PatientID   string    `json:"patientId"`
	PatientName string    `json:"patientName,omitempty"`
	TestType    string    `json:"testType"`
	Status      string    `json:"status"`
	ReviewerID  string    `json:"reviewerId,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// Refund sub-states: Requested → Approved | Rejected → Processed | Failed.
type Payment struct {
	ID           string    `json:"id"`
	PatientID    string    `json:"patientId"`
	Amount       float64   `json:"amount"`
	Method       string    `json:"method,omitempty"`
	Status       string    `json:"status"`
	RefundStatus string    `json:"refundStatus,omitempty"`
	RefundReason string    `json:"refundReason,omitempty"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
}

type Complaint struct {
	ID              string             `json:"id"`
	PatientID       string             `json:"patientId"`
	Subject         string             `json:"subject"`
	Description     string             `json:"description,omitempty"`
	Status          string             `json:"status"`
	Priority        string             `json:"priority,omitempty"`
	AssignedTo      string             `json:"assignedTo,omitempty"`
	Resolution      string             `json:"resolution,omitempty"`
	ResolutionNotes string             `json:"resolutionNotes,omitempty"`
	ResolvedBy      string             `json:"resolvedBy,omitempty"`
	Comments        []ComplaintComment `json:"comments,omitempty"`
	CreatedAt       time.Time          `json:"createdAt,omitempty"`
}

type ComplaintComment struct {
	Author    string    `json:"author,omitempty"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// ComplaintStats is the aggregate block behind the complaints dashboard.
type ComplaintStats struct {
	Total      int            `json:"total"`
	Open       int            `json:"open"`
	Resolved   int            `json:"resolved"`
	ByPriority map[string]int `json:"byPriority,omitempty"`
}

// List envelopes: every collection endpoint returns its items under "data"
// alongside the pagination block.

type UserList struct {
	Data []User `json:"data"`
	pagination.Meta
}

type PatientList struct {
	Data []Patient `json:"data"`
	pagination.Meta
}

type AppointmentList struct {
	Data []Appointment `json:"data"`
	pagination.Meta
}

type ReportList struct {
	Data []Report `json:"data"`
	pagination.Meta
}

type PaymentList struct {
	Data []Payment `json:"data"`
	pagination.Meta
}

type ComplaintList struct {
	Data []Complaint `json:"data"`
	pagination.Meta
}
