package domain

import (
	"errors"
	"time"
)

var (
	ErrClientNotFound = errors.New("client not found")
	ErrNameRequired   = errors.New("name is required")
	ErrPortalDisabled = errors.New("client portal is disabled")
)

// PortalSettings controls what a client sees through a portal link.
type PortalSettings struct {
	Enabled      bool `json:"enabled" firestore:"enabled"`
	ShowProjects bool `json:"showProjects" firestore:"showProjects"`
	ShowTasks    bool `json:"showTasks" firestore:"showTasks"`
	ShowInvoices bool `json:"showInvoices" firestore:"showInvoices"`
}

// DefaultPortalSettings shows everything once the owner enables the portal.
func DefaultPortalSettings() PortalSettings {
	return PortalSettings{ShowProjects: true, ShowTasks: true, ShowInvoices: true}
}

// Client is stored at users/{uid}/clients/{id}.
type Client struct {
	ID        string         `json:"id" firestore:"id"`
	OwnerID   string         `json:"ownerId" firestore:"ownerId"`
	Name      string         `json:"name" firestore:"name"`
	Email     string         `json:"email" firestore:"email"`
	Phone     string         `json:"phone,omitempty" firestore:"phone"`
	Address   string         `json:"address,omitempty" firestore:"address"`
	Portal    PortalSettings `json:"portal" firestore:"portal"`
	CreatedAt time.Time      `json:"createdAt" firestore:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt" firestore:"updatedAt"`
}

type CreateClientRequest struct {
	Name    string          `json:"name"`
	Email   string          `json:"email"`
	Phone   string          `json:"phone"`
	Address string          `json:"address"`
	Portal  *PortalSettings `json:"portal"`
}

type UpdateClientRequest struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}
