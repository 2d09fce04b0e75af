package model

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Status is the student-controlled project stage. Any value may be written at
// any time; there is no enforced ordering between stages.
type Status string

const (
	StatusIdea      Status = "idea"
	StatusPrototype Status = "prototype"
	StatusTesting   Status = "testing"
	StatusCompleted Status = "completed"
)

// AdminStatus is the admin-controlled review outcome, orthogonal to Status.
// Empty means the portfolio has not been reviewed.
type AdminStatus string

const (
	AdminStatusApproved AdminStatus = "approved"
	AdminStatusRejected AdminStatus = "rejected"
)

type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
	Name     string `json:"name"`
}

type Milestone struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Completed bool       `json:"completed"`
	Date      *time.Time `json:"date"`
}

type Media struct {
	Name string    `json:"name"`
	Type MediaType `json:"type"`
	URL  string    `json:"url"`
}

type Portfolio struct {
	ID          string      `json:"id"`
	StudentID   string      `json:"studentId"`
	StudentName string      `json:"studentName"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Status      Status      `json:"status"`
	AdminStatus AdminStatus `json:"adminStatus,omitempty"`
	Milestones  []Milestone `json:"milestones"`
	Media       []Media     `json:"media"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

type FeedbackType string

const (
	FeedbackTypeStudent FeedbackType = "student"
	FeedbackTypeAdmin   FeedbackType = "admin"
)

type Feedback struct {
	ID          string       `json:"id"`
	PortfolioID string       `json:"portfolioId"`
	Author      string       `json:"author"`
	Comment     string       `json:"comment"`
	Type        FeedbackType `json:"type"`
	Date        time.Time    `json:"date"`
}

// Progress returns the milestone completion percentage, 0 when there are no
// milestones.
func Progress(milestones []Milestone) float64 {
	if len(milestones) == 0 {
		return 0
	}
	completed := 0
	for _, m := range milestones {
		if m.Completed {
			completed++
		}
	}
	return float64(completed) / float64(len(milestones)) * 100
}

// ToggleMilestone flips the completion state of the milestone with the given
// id, stamping its date when it turns complete and clearing it when it turns
// incomplete. Returns false when no milestone matches.
func ToggleMilestone(milestones []Milestone, id string, now time.Time) bool {
	for i := range milestones {
		if milestones[i].ID != id {
			continue
		}
		milestones[i].Completed = !milestones[i].Completed
		if milestones[i].Completed {
			stamped := now
			milestones[i].Date = &stamped
		} else {
			milestones[i].Date = nil
		}
		return true
	}
	return false
}

// DefaultMilestones returns the four-stage checklist a new portfolio starts
// with when the caller supplies none.
func DefaultMilestones() []Milestone {
	return []Milestone{
		{ID: "1", Name: "Idea"},
		{ID: "2", Name: "Prototype"},
		{ID: "3", Name: "Testing"},
		{ID: "4", Name: "Completed"},
	}
}

func ParseStatus(value string) (Status, error) {
	switch value {
	case "idea", "prototype", "testing", "completed":
		return Status(value), nil
	default:
		return "", fmt.Errorf("unknown status %q", value)
	}
}

func ParseAdminStatus(value string) (AdminStatus, error) {
	switch value {
	case "approved", "rejected":
		return AdminStatus(value), nil
	default:
		return "", fmt.Errorf("unknown admin status %q", value)
	}
}

func ParseMediaType(value string) (MediaType, error) {
	switch value {
	case "image", "video":
		return MediaType(value), nil
	default:
		return "", fmt.Errorf("unknown media type %q", value)
	}
}
