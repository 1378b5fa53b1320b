package bootstrap

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"github.com/redis/go-redis/v9"

	"github.com/tallyhq/tally-backend/config"
	activityrepo "github.com/tallyhq/tally-backend/internal/activity/repository"
	activitysvc "github.com/tallyhq/tally-backend/internal/activity/service"
	"github.com/tallyhq/tally-backend/internal/auth"
	"github.com/tallyhq/tally-backend/internal/billing/provider"
	billingrepo "github.com/tallyhq/tally-backend/internal/billing/repository"
	billingsvc "github.com/tallyhq/tally-backend/internal/billing/service"
	"github.com/tallyhq/tally-backend/internal/billing/webhook"
	"github.com/tallyhq/tally-backend/internal/changes"
	clientsrepo "github.com/tallyhq/tally-backend/internal/clients/repository"
	clientsvc "github.com/tallyhq/tally-backend/internal/clients/service"
	"github.com/tallyhq/tally-backend/internal/docstore"
	invoicesrepo "github.com/tallyhq/tally-backend/internal/invoices/repository"
	invoicesvc "github.com/tallyhq/tally-backend/internal/invoices/service"
	"github.com/tallyhq/tally-backend/internal/logging"
	"github.com/tallyhq/tally-backend/internal/mailer"
	"github.com/tallyhq/tally-backend/internal/portal"
	projectsrepo "github.com/tallyhq/tally-backend/internal/projects/repository"
	projectsvc "github.com/tallyhq/tally-backend/internal/projects/service"
	users "github.com/tallyhq/tally-backend/internal/users/domain"
	usersrepo "github.com/tallyhq/tally-backend/internal/users/repository"
	usersvc "github.com/tallyhq/tally-backend/internal/users/service"
)

// Infra is the set of opened connections services are built on.
type Infra struct {
	Config   *config.Config
	Log      logging.Logger
	SQL      *sql.DB
	Store    docstore.Store
	Redis    *redis.Client
	Firebase *firebase.App // nil without credentials
}

type Services struct {
	Users      *usersvc.UserService
	Activity   *activitysvc.ActivityService
	Projects   *projectsvc.ProjectService
	Clients    *clientsvc.ClientService
	Invoices   *invoicesvc.InvoiceService
	Billing    *billingsvc.BillingService
	Reconciler *webhook.Reconciler
	Portal     *portal.Service
}

func NewServices(ctx context.Context, in Infra) (*Services, error) {
	cfg := in.Config
	pub := changes.NewRedisPublisher(in.Redis, in.Log)

	userSvc := usersvc.NewUserService(usersrepo.NewUserRepository(in.SQL))
	activitySvc := activitysvc.NewActivityService(activityrepo.NewActivityRepository(in.Store), in.Log)

	projectSvc := projectsvc.NewProjectService(
		projectsrepo.NewProjectRepository(in.Store),
		projectsrepo.NewTaskRepository(in.Store),
		projectsrepo.NewTimeEntryRepository(in.Store),
		activitySvc, pub, in.Log,
	)

	clientRepo := clientsrepo.NewClientRepository(in.Store)
	clientSvc := clientsvc.NewClientService(clientRepo, activitySvc, pub)

	// Interfaces stay nil unless the provider is configured.
	var (
		payments    invoicesvc.Payments
		billingProv billingsvc.Provider
		fetcher     webhook.SubscriptionFetcher
	)
	if cfg.Stripe.SecretKey != "" {
		stripeClient := provider.NewStripe(cfg.Stripe.SecretKey, cfg.Stripe.PriceIDs, string(users.DefaultPaidPlan))
		payments, billingProv, fetcher = stripeClient, stripeClient, stripeClient
	} else {
		in.Log.Warn(ctx, "STRIPE_SECRET_KEY not set, payments disabled")
	}

	invoiceSvc := invoicesvc.NewInvoiceService(
		invoicesrepo.NewInvoiceRepository(in.Store),
		clientRepo, payments, mailer.NewLogMailer(in.Log),
		activitySvc, pub, in.Log,
	)

	subs := billingrepo.NewSubscriptionRepository(in.Store)
	billingInvoices := billingrepo.NewBillingInvoiceRepository(in.Store)
	billingSvc := billingsvc.NewBillingService(billingProv, userSvc, subs, billingInvoices,
		cfg.Stripe.PriceIDs, cfg.App.FrontendURL, in.Log)

	var claims webhook.Claims
	if in.Firebase != nil {
		authClient, err := in.Firebase.Auth(ctx)
		if err != nil {
			return nil, fmt.Errorf("firebase auth client: %w", err)
		}
		claims = auth.NewPlanClaims(authClient)
	}

	reconciler := webhook.NewReconciler(cfg.Stripe.WebhookSecret, webhook.Deps{
		Users:         userSvc,
		Claims:        claims,
		Subscriptions: fetcher,
		SubRepo:       subs,
		BillingRepo:   billingInvoices,
		Invoices:      invoiceSvc,
		Activity:      activitySvc,
		Changes:       pub,
		Ledger:        webhook.NewRedisLedger(in.Redis, webhook.DefaultLedgerTTL),
		Log:           in.Log,
	})

	signingKey := cfg.Portal.SigningKey
	if signingKey == "" {
		signingKey = randomKey()
		in.Log.Warn(ctx, "PORTAL_SIGNING_KEY not set, portal links will not survive a restart")
	}
	portalSvc := portal.NewService(
		portal.NewTokens(signingKey, cfg.Portal.TokenTTL),
		clientSvc, projectSvc, invoiceSvc, cfg.App.FrontendURL, in.Log,
	)

	return &Services{
		Users:      userSvc,
		Activity:   activitySvc,
		Projects:   projectSvc,
		Clients:    clientSvc,
		Invoices:   invoiceSvc,
		Billing:    billingSvc,
		Reconciler: reconciler,
		Portal:     portalSvc,
	}, nil
}

func randomKey() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
