package core

import (
	"errors"
	"strings"
)

const (
	StudentActive  StudentStatus = "Active"
	StudentArchive StudentStatus = "Archive"

	PaymentPaid PaymentStatus = "Paid"
	PaymentDue  PaymentStatus = "Due"

	PaymentMonthly PaymentType = "Monthly"
	PaymentAdvance PaymentType = "Advance"
	PaymentPastDue PaymentType = "PastDue"

	FinePaid    FineStatus = "Paid"
	FinePending FineStatus = "Pending"

	NoteTest  NoteType = "Test"
	NoteExam  NoteType = "Exam"
	NoteEvent NoteType = "Event"
	NoteNote  NoteType = "Note"

	NotePending   NoteStatus = "Pending"
	NoteCompleted NoteStatus = "Completed"

	Present AttendanceStatus = "P"
	Absent  AttendanceStatus = "A"
)

type (
	StudentStatus    string
	PaymentStatus    string
	PaymentType      string
	FineStatus       string
	NoteType         string
	NoteStatus       string
	AttendanceStatus string

	Batch struct {
		ID        string    `json:"id"`
		Name      string    `json:"name" validate:"required,max=100"`
		ClassName string    `json:"className,omitempty" validate:"max=100"`
		Fee       int64     `json:"fee" validate:"gte=0"` // default monthly fee in whole currency units
		IsActive  bool      `json:"isActive"`
		Days      []string  `json:"days" validate:"dive,oneof=Sat Sun Mon Tue Wed Thu Fri"`
		Time      string    `json:"time"`
		StartDate DateParts `json:"startDate"`
	}

	Student struct {
		ID                string        `json:"id"`
		Name              string        `json:"name" validate:"required,max=100"`
		Roll              string        `json:"roll" validate:"max=20"`
		Mobile            string        `json:"mobile" validate:"omitempty,max=20"`
		BatchID           string        `json:"batchId" validate:"required"`
		Status            StudentStatus `json:"status" validate:"oneof=Active Archive"`
		MonthlyFee        *int64        `json:"monthlyFee,omitempty" validate:"omitempty,gte=0"` // overrides Batch.Fee when set
		EnrollmentDate    DateParts     `json:"enrollmentDate"`
		PresentationScore int           `json:"presentationScore,omitempty" validate:"gte=0,lte=100"`
	}

	PaymentRecord struct {
		ID          string        `json:"id"`
		StudentID   string        `json:"studentId"`
		BatchID     string        `json:"batchId"`
		Amount      int64         `json:"amount"`
		Month       string        `json:"month"`
		Year        string        `json:"year"`
		PaymentDate string        `json:"paymentDate"`
		Type        PaymentType   `json:"type"`
		Status      PaymentStatus `json:"status"`
	}

	FineRecord struct {
		ID        string     `json:"id"`
		StudentID string     `json:"studentId"`
		BatchID   string     `json:"batchId"`
		Amount    int64      `json:"amount"`
		Reason    string     `json:"reason"`
		Status    FineStatus `json:"status"`
		Date      string     `json:"date"`
	}

	BatchNote struct {
		ID        string     `json:"id"`
		BatchID   string     `json:"batchId" validate:"required"`
		Content   string     `json:"content" validate:"required,max=500"`
		Type      NoteType   `json:"type" validate:"oneof=Test Exam Event Note"`
		Status    NoteStatus `json:"status"`
		CreatedAt string     `json:"createdAt"`
	}

	AttendanceRecord struct {
		ID        string           `json:"id"`
		StudentID string           `json:"studentId"`
		BatchID   string           `json:"batchId"`
		Date      string           `json:"date"` // YYYY-MM-DD
		Status    AttendanceStatus `json:"status"`
	}

	Settings struct {
		InstituteName string `json:"instName"`
		SMSTemplate   string `json:"smsTemplate"`
		StandardFee   int64  `json:"standardFee" validate:"gte=0"`
	}
)

var (
	ErrInvalidDate    = errors.New("invalid date")
	ErrNegativeFee    = errors.New("fee cannot be negative")
	ErrEmptyName      = errors.New("empty name")
	ErrUnknownStudent = errors.New("unknown student")
	ErrUnknownBatch   = errors.New("unknown batch")
	ErrUnknownRecord  = errors.New("unknown record")
)

func (s Student) IsActive() bool {
	return s.Status == StudentActive
}

func (p PaymentRecord) IsPaid() bool {
	return p.Status == PaymentPaid
}

// Flip returns the opposite payment status.
func (s PaymentStatus) Flip() PaymentStatus {
	if s == PaymentPaid {
		return PaymentDue
	}
	return PaymentPaid
}

func (s FineStatus) Flip() FineStatus {
	if s == FinePaid {
		return FinePending
	}
	return FinePaid
}

func (s NoteStatus) Flip() NoteStatus {
	if s == NoteCompleted {
		return NotePending
	}
	return NoteCompleted
}

func (b Batch) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	if b.Fee < 0 {
		return ErrNegativeFee
	}
	if !b.StartDate.IsEmpty() {
		if err := b.StartDate.Validate(); err != nil {
			return err
		}
	}
	return Validate(b)
}

func (s Student) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	if s.MonthlyFee != nil && *s.MonthlyFee < 0 {
		return ErrNegativeFee
	}
	if err := s.EnrollmentDate.Validate(); err != nil {
		return err
	}
	return Validate(s)
}

func (n BatchNote) Validate() error {
	return Validate(n)
}

func (s Settings) Validate() error {
	if s.StandardFee < 0 {
		return ErrNegativeFee
	}
	return nil
}

const (
	DefaultInstituteName = "Imran's Academy"
	DefaultStandardFee   = 1000
	DefaultSMSTemplate   = "{INSTITUTE_NAME}\n\nDear {STUDENT_NAME},\n\nPaid Months: {PAID_MONTHS}\nDue Months: {DUE_MONTHS}\n\nTotal Due: {TOTAL_DUE_AMOUNT} Tk\n\nThank you."
)

// DefaultSettings returns the settings used before anything is saved.
func DefaultSettings() Settings {
	return Settings{
		InstituteName: DefaultInstituteName,
		SMSTemplate:   DefaultSMSTemplate,
		StandardFee:   DefaultStandardFee,
	}
}

// WithDefaults fills empty text fields from DefaultSettings.
func (s Settings) WithDefaults() Settings {
	if s.InstituteName == "" {
		s.InstituteName = DefaultInstituteName
	}
	if s.SMSTemplate == "" {
		s.SMSTemplate = DefaultSMSTemplate
	}
	return s
}
