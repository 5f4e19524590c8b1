// Package repository defines domain models and data access interfaces for
// users, workspaces, documents, clauses, and conversations.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Document statuses
const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusProcessed  = "processed"
	StatusFailed     = "failed"
)

// File types accepted for upload
const (
	FileTypePDF  = "pdf"
	FileTypeDOCX = "docx"
)

// User represents a registered user
type User struct {
	ID             uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Workspace groups documents and conversations for one user
type Workspace struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Name        string
	Description string
	IsTemporary bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WorkspaceStats summarizes workspace contents
type WorkspaceStats struct {
	DocumentCount      int `json:"document_count"`
	ProcessedDocuments int `json:"processed_documents"`
	FailedDocuments    int `json:"failed_documents"`
	ClauseCount        int `json:"clause_count"`
	HighRiskClauses    int `json:"high_risk_clauses"`
	ConversationCount  int `json:"conversation_count"`
}

// Document represents an uploaded contract file
type Document struct {
	ID               uuid.UUID
	WorkspaceID      uuid.UUID
	Name             string
	OriginalFilename string
	FilePath         string
	FileType         string // pdf or docx
	Status           string
	PageCount        *int
	FileSize         int64
	ContractType     string
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Clause is an extracted contract clause with risk analysis
type Clause struct {
	ID              uuid.UUID
	DocumentID      uuid.UUID
	ClauseType      string
	ExtractedText   string
	PageNumber      int
	Section         string
	ConfidenceScore float64
	RiskScore       float64
	RiskFlags       []string
	RiskReasoning   string
	ClauseSubtype   string
	Coordinates     map[string]any
	CreatedAt       time.Time
}

// ClauseFilter narrows clause listings
type ClauseFilter struct {
	ClauseType   string
	MinRiskScore *float64
	MaxRiskScore *float64
	HasRiskFlags *bool
	PageNumber   *int
}

// Conversation is a Q&A thread within a workspace
type Conversation struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	Title       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ConversationMessage is one turn of a conversation. Citations carry the
// assistant's source references as JSON.
type ConversationMessage struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Role           string // user or assistant
	Content        string
	Citations      json.RawMessage
	MessageIndex   int
	CreatedAt      time.Time
}

// UserRepository defines operations for user persistence
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// WorkspaceRepository defines operations for workspace persistence
type WorkspaceRepository interface {
	Create(ctx context.Context, ws *Workspace) error
	GetByID(ctx context.Context, id uuid.UUID) (*Workspace, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Workspace, error)
	Update(ctx context.Context, ws *Workspace) error
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context, id uuid.UUID) (*WorkspaceStats, error)
}

// DocumentRepository defines operations for document persistence
type DocumentRepository interface {
	Create(ctx context.Context, doc *Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*Document, error)
	List(ctx context.Context, workspaceID uuid.UUID) ([]*Document, error)
	Update(ctx context.Context, doc *Document) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status, errorMessage string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ClauseRepository defines operations for clause persistence
type ClauseRepository interface {
	CreateBatch(ctx context.Context, clauses []*Clause) error
	GetByID(ctx context.Context, id uuid.UUID) (*Clause, error)
	ListByDocument(ctx context.Context, documentID uuid.UUID, filter ClauseFilter) ([]*Clause, error)
	CountByDocument(ctx context.Context, documentID uuid.UUID) (int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByDocument(ctx context.Context, documentID uuid.UUID) error
}

// ConversationRepository defines operations for conversation persistence
type ConversationRepository interface {
	Create(ctx context.Context, conv *Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Conversation, error)
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]*Conversation, error)
	Update(ctx context.Context, conv *Conversation) error
	Delete(ctx context.Context, id uuid.UUID) error

	// Message operations
	CreateMessage(ctx context.Context, msg *ConversationMessage) error
	GetMessages(ctx context.Context, conversationID uuid.UUID) ([]*ConversationMessage, error)
}
