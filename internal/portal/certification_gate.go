package portal

import (
	"context"

	"skillcert_backend/internal/gate"
	"skillcert_backend/internal/model"
	"skillcert_backend/pkg/client"
)

// CertificationGate runs the "Start Earning" check for a signed-in user.
type CertificationGate struct {
	api       API
	PassScore int
}

func NewCertificationGate(api API, passScore int) *CertificationGate {
	return &CertificationGate{api: api, PassScore: passScore}
}

// Result is either a route to follow or a message to show.
type Result struct {
	gate.Decision
	Route string
}

func (g *CertificationGate) StartEarning(ctx context.Context, userID uint) (Result, error) {
	profile, err := g.api.GetUser(ctx, userID)
	if err != nil {
		return Result{}, failure("Failed to load your certifications", err)
	}
	d := gate.Decide(toModel(profile.Certifications), g.PassScore)
	res := Result{Decision: d}
	if d.Allowed() {
		res.Route = SellerRegisterRoute
	}
	return res, nil
}

// Register completes seller registration when the gate allows it.
func (g *CertificationGate) Register(ctx context.Context, userID uint) (Result, *client.SellerResult, error) {
	res, err := g.StartEarning(ctx, userID)
	if err != nil || !res.Allowed() {
		return res, nil, err
	}
	seller, err := g.api.RegisterSeller(ctx, userID)
	if err != nil {
		return res, nil, failure("Seller registration failed", err)
	}
	return res, seller, nil
}

func toModel(certs []client.Certification) []model.Certification {
	out := make([]model.Certification, 0, len(certs))
	for _, c := range certs {
		m := model.Certification{
			UserID:       c.UserID,
			Skill:        c.Skill,
			SubmissionID: c.SubmissionID,
			Score:        c.Score,
			IssuedAt:     c.IssuedAt,
			ExpiresAt:    c.ExpiresAt,
			Status:       model.CertificationStatus(c.Status),
		}
		m.ID = c.ID
		out = append(out, m)
	}
	return out
}
