package auth

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/auth"

	"github.com/tallyhq/tally-backend/internal/users/domain"
)

// PlanClaimKey is the custom-claim name the front end reads the plan from.
const PlanClaimKey = "plan"

// ClaimsClient is the part of the Firebase Auth client used for claims.
type ClaimsClient interface {
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
	SetCustomUserClaims(ctx context.Context, uid string, customClaims map[string]interface{}) error
}

// PlanClaims grants and revokes the plan claim while keeping other claims.
type PlanClaims struct {
	client ClaimsClient
}

func NewPlanClaims(client ClaimsClient) *PlanClaims {
	return &PlanClaims{client: client}
}

func (p *PlanClaims) Grant(ctx context.Context, uid string, plan domain.Plan) error {
	return p.update(ctx, uid, func(claims map[string]interface{}) {
		claims[PlanClaimKey] = string(plan)
	})
}

func (p *PlanClaims) Revoke(ctx context.Context, uid string) error {
	return p.update(ctx, uid, func(claims map[string]interface{}) {
		delete(claims, PlanClaimKey)
	})
}

func (p *PlanClaims) update(ctx context.Context, uid string, mutate func(map[string]interface{})) error {
	rec, err := p.client.GetUser(ctx, uid)
	if err != nil {
		return fmt.Errorf("get firebase user %s: %w", uid, err)
	}

	claims := make(map[string]interface{}, len(rec.CustomClaims)+1)
	for k, v := range rec.CustomClaims {
		claims[k] = v
	}
	mutate(claims)

	if err := p.client.SetCustomUserClaims(ctx, uid, claims); err != nil {
		return fmt.Errorf("set claims for %s: %w", uid, err)
	}
	return nil
}
