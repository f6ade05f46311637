package compliance

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/louisbranch/assetflow/internal/platform/id"
)

// Policy is a local gate driven by jurisdiction and principal block lists.
// Every evaluation, compliant or not, is issued a verification id.
type Policy struct {
	mu                  sync.RWMutex
	blockedJurisdiction map[string]string
	blockedPrincipal    map[string]string
	newID               func() (string, error)
}

// NewPolicy returns a policy that rejects the listed jurisdictions.
func NewPolicy(blockedJurisdictions ...string) *Policy {
	p := &Policy{
		blockedJurisdiction: make(map[string]string),
		blockedPrincipal:    make(map[string]string),
		newID:               id.NewID,
	}
	for _, jurisdiction := range blockedJurisdictions {
		p.BlockJurisdiction(jurisdiction, "jurisdiction is not permitted")
	}
	return p
}

// BlockJurisdiction rejects every operation under jurisdiction.
func (p *Policy) BlockJurisdiction(jurisdiction, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blockedJurisdiction[normalize(jurisdiction)] = reason
}

// AllowJurisdiction lifts a jurisdiction block.
func (p *Policy) AllowJurisdiction(jurisdiction string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.blockedJurisdiction, normalize(jurisdiction))
}

// BlockPrincipal rejects operations whose caller is principal.
func (p *Policy) BlockPrincipal(principal, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blockedPrincipal[strings.TrimSpace(principal)] = reason
}

// Evaluate applies the block lists.
func (p *Policy) Evaluate(ctx context.Context, req Request) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return Verdict{}, err
	}
	verificationID, err := p.newID()
	if err != nil {
		return Verdict{}, fmt.Errorf("issue verification id: %w", err)
	}
	verdict := Verdict{Compliant: true, VerificationIDs: []string{verificationID}}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if reason, blocked := p.blockedJurisdiction[normalize(req.Jurisdiction)]; blocked {
		verdict.Compliant = false
		verdict.Reason = reason
		return verdict, nil
	}
	if reason, blocked := p.blockedPrincipal[strings.TrimSpace(req.Data["caller"])]; blocked {
		verdict.Compliant = false
		verdict.Reason = reason
	}
	return verdict, nil
}

func normalize(jurisdiction string) string {
	return strings.ToUpper(strings.TrimSpace(jurisdiction))
}

var _ Gate = (*Policy)(nil)
