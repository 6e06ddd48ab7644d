package usecase

import (
	"bytes"
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/eliteGoblin/shield/internal/catalog"
	"github.com/eliteGoblin/shield/internal/domain"
)

// ActionService runs catalog actions for the action features.
type ActionService struct {
	registry *catalog.Registry
	invoker  domain.Invoker
	logger   *zap.Logger
}

// NewActionService creates an action runner over the registry.
func NewActionService(registry *catalog.Registry, invoker domain.Invoker, logger *zap.Logger) *ActionService {
	return &ActionService{
		registry: registry,
		invoker:  invoker,
		logger:   logger,
	}
}

// Run validates params and invokes the action.
// Elevated runs return the acknowledgment, not script data.
func (s *ActionService) Run(ctx context.Context, featureID, actionID string, params map[string]string) (domain.InvocationResult, error) {
	action, err := s.registry.Action(featureID, actionID)
	if err != nil {
		return domain.InvocationResult{}, err
	}
	args, err := action.Args(params)
	if err != nil {
		return domain.InvocationResult{}, err
	}

	res, err := s.invoker.Execute(ctx, domain.ScriptInvocation{
		Script:            action.Script,
		Args:              args,
		RequiresElevation: action.RequiresAdmin,
	})
	if err != nil {
		s.logger.Warn("action failed",
			zap.String("feature", featureID),
			zap.String("action", actionID),
			zap.Error(err))
		return domain.InvocationResult{}, err
	}

	if action.NormalizeArray && res.Kind == domain.ResultStructured {
		res.Payload = normalizeArray(res.Payload)
	}

	s.logger.Debug("action completed",
		zap.String("feature", featureID),
		zap.String("action", actionID),
		zap.String("kind", string(res.Kind)))
	return res, nil
}

// normalizeArray turns a lone object into a one-element array and null into [].
func normalizeArray(payload json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(payload)
	switch {
	case len(trimmed) == 0, bytes.Equal(trimmed, []byte("null")):
		return json.RawMessage("[]")
	case trimmed[0] == '[':
		return trimmed
	default:
		out := make([]byte, 0, len(trimmed)+2)
		out = append(out, '[')
		out = append(out, trimmed...)
		out = append(out, ']')
		return out
	}
}
