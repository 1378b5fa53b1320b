// Package portal serves a read-mostly view of an owner's data to one of their
// clients through a signed link.
package portal

import (
	"context"
	"errors"
	"time"

	clients "github.com/tallyhq/tally-backend/internal/clients/domain"
	invoices "github.com/tallyhq/tally-backend/internal/invoices/domain"
	"github.com/tallyhq/tally-backend/internal/logging"
	projects "github.com/tallyhq/tally-backend/internal/projects/domain"
)

// ErrTasksHidden is returned for task actions when the portal does not show tasks.
var ErrTasksHidden = errors.New("tasks are not shared on this portal")

type ClientReader interface {
	Get(ctx context.Context, ownerID, clientID string) (*clients.Client, error)
}

type ProjectReader interface {
	ProjectsForClient(ctx context.Context, ownerID, clientID string, withTasks bool) ([]projects.Project, error)
	GetProject(ctx context.Context, ownerID, projectID string) (*projects.Project, error)
	ApproveTask(ctx context.Context, ownerID, projectID, taskID string) (*projects.Task, error)
}

type InvoiceReader interface {
	ListForClient(ctx context.Context, ownerID, clientID string) ([]invoices.Invoice, error)
}

type Link struct {
	URL       string    `json:"url"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type ClientView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ProjectView is a project as its client sees it. Owner identifiers stay out.
type ProjectView struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Description  string                 `json:"description"`
	Status       projects.ProjectStatus `json:"status"`
	LastActivity time.Time              `json:"lastActivity"`
	Tasks        []projects.Task        `json:"tasks,omitempty"`
}

type InvoiceView struct {
	ID             string          `json:"id"`
	InvoiceNumber  string          `json:"invoiceNumber"`
	Items          []invoices.Item `json:"items"`
	Total          float64         `json:"total"`
	Currency       string          `json:"currency"`
	Status         invoices.Status `json:"status"`
	DueDate        *time.Time      `json:"dueDate,omitempty"`
	SentAt         *time.Time      `json:"sentAt,omitempty"`
	PaidAt         *time.Time      `json:"paidAt,omitempty"`
	PaymentLinkURL string          `json:"paymentLinkUrl,omitempty"`
}

// View is everything a client sees on their portal page.
type View struct {
	Client   ClientView             `json:"client"`
	Settings clients.PortalSettings `json:"settings"`
	Projects []ProjectView          `json:"projects,omitempty"`
	Invoices []InvoiceView          `json:"invoices,omitempty"`
}

func projectViews(ps []projects.Project) []ProjectView {
	out := make([]ProjectView, 0, len(ps))
	for _, p := range ps {
		out = append(out, ProjectView{
			ID:           p.ID,
			Name:         p.Name,
			Description:  p.Description,
			Status:       p.Status,
			LastActivity: p.LastActivity,
			Tasks:        p.Tasks,
		})
	}
	return out
}

func invoiceViews(invs []invoices.Invoice) []InvoiceView {
	out := make([]InvoiceView, 0, len(invs))
	for _, inv := range invs {
		out = append(out, InvoiceView{
			ID:             inv.ID,
			InvoiceNumber:  inv.InvoiceNumber,
			Items:          inv.Items,
			Total:          inv.Total,
			Currency:       inv.Currency,
			Status:         inv.Status,
			DueDate:        inv.DueDate,
			SentAt:         inv.SentAt,
			PaidAt:         inv.PaidAt,
			PaymentLinkURL: inv.PaymentLinkURL,
		})
	}
	return out
}

type Service struct {
	tokens      *Tokens
	clients     ClientReader
	projects    ProjectReader
	invoices    InvoiceReader
	frontendURL string
	log         logging.Logger
}

func NewService(tokens *Tokens, c ClientReader, p ProjectReader, i InvoiceReader, frontendURL string, log logging.Logger) *Service {
	return &Service{
		tokens:      tokens,
		clients:     c,
		projects:    p,
		invoices:    i,
		frontendURL: frontendURL,
		log:         log.With("component", "portal"),
	}
}

// IssueLink signs a portal link for an owner's client. The portal must be enabled.
func (s *Service) IssueLink(ctx context.Context, ownerID, clientID string) (*Link, error) {
	client, err := s.clients.Get(ctx, ownerID, clientID)
	if err != nil {
		return nil, err
	}
	if !client.Portal.Enabled {
		return nil, clients.ErrPortalDisabled
	}
	token, exp, err := s.tokens.Issue(ownerID, clientID)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "portal link issued", "owner", ownerID, "client", clientID, "expires", exp)
	return &Link{
		URL:       s.frontendURL + "/portal/" + token,
		Token:     token,
		ExpiresAt: exp,
	}, nil
}

// resolve checks the token and loads the client it names.
func (s *Service) resolve(ctx context.Context, token string) (*Claims, *clients.Client, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, nil, err
	}
	client, err := s.clients.Get(ctx, claims.OwnerID, claims.ClientID)
	if err != nil {
		return nil, nil, err
	}
	if !client.Portal.Enabled {
		return nil, nil, clients.ErrPortalDisabled
	}
	return claims, client, nil
}

func (s *Service) Open(ctx context.Context, token string) (*View, error) {
	claims, client, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	settings := client.Portal
	view := &View{
		Client:   ClientView{ID: client.ID, Name: client.Name, Email: client.Email},
		Settings: settings,
	}
	if settings.ShowProjects {
		ps, err := s.projects.ProjectsForClient(ctx, claims.OwnerID, client.ID, settings.ShowTasks)
		if err != nil {
			return nil, err
		}
		view.Projects = projectViews(ps)
	}
	if settings.ShowInvoices {
		invs, err := s.invoices.ListForClient(ctx, claims.OwnerID, client.ID)
		if err != nil {
			return nil, err
		}
		view.Invoices = invoiceViews(invs)
	}
	return view, nil
}

// ApproveTask lets the client sign off a task on one of their projects.
func (s *Service) ApproveTask(ctx context.Context, token, projectID, taskID string) (*projects.Task, error) {
	claims, client, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	if !client.Portal.ShowProjects || !client.Portal.ShowTasks {
		return nil, ErrTasksHidden
	}
	project, err := s.projects.GetProject(ctx, claims.OwnerID, projectID)
	if err != nil {
		return nil, err
	}
	if project.ClientID != client.ID {
		return nil, projects.ErrProjectNotFound
	}
	task, err := s.projects.ApproveTask(ctx, claims.OwnerID, projectID, taskID)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "task approved through portal", "owner", claims.OwnerID, "client", client.ID, "task", taskID)
	return task, nil
}
