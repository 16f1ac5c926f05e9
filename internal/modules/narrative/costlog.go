package narrative

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nightreel/narrative-backend/internal/llm"
	"github.com/nightreel/narrative-backend/internal/logger"
	"github.com/nightreel/narrative-backend/internal/repos"
	"github.com/nightreel/narrative-backend/internal/types"
)

// CostNotifier records token spend per generation call. Recording is
// fire-and-forget: a cost row that fails to write must never fail the
// stage that spent the tokens.
type CostNotifier struct {
	log  *logger.Logger
	repo repos.CostLogRepo
}

func NewCostNotifier(log *logger.Logger, repo repos.CostLogRepo) *CostNotifier {
	return &CostNotifier{log: log.With("service", "CostNotifier"), repo: repo}
}

// Record writes the cost row in the background. Detached from the caller's
// ctx so stage completion doesn't cancel the write.
func (c *CostNotifier) Record(outputID uuid.UUID, resource, action, provider, model string, usage llm.Usage) {
	if c == nil || c.repo == nil {
		return
	}
	id := outputID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, err := c.repo.Create(ctx, nil, []*types.CostLog{{
			OutputID:     &id,
			Resource:     resource,
			Action:       action,
			Provider:     provider,
			Model:        model,
			InputTokens:  usage.InputTokens,
			OutputTokens: usage.OutputTokens,
			TotalTokens:  usage.TotalTokens,
		}})
		if err != nil {
			c.log.Warn("Cost log write failed", "resource", resource, "action", action, "error", err)
		}
	}()
}
