package merging

import (
	"errors"
	"fmt"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Error kinds. Match them with errors.Is against a *MergeError.
var (
	// ErrComparison marks malformed scoring input. Scoring is total, so it is never returned.
	ErrComparison      = errors.New("comparison error")
	ErrDependencyRead  = errors.New("dependency read failed")
	ErrFieldUpdate     = errors.New("field update failed")
	ErrTransfer        = errors.New("dependent transfer failed")
	ErrDeletion        = errors.New("duplicate deletion failed")
	ErrMergeInProgress = errors.New("merge already in progress for these clients")
	ErrLockUnavailable = errors.New("merge lock unavailable")
	ErrInvalidMerge    = errors.New("invalid merge request")
)

// MergeError records which stage of a merge failed and why.
type MergeError struct {
	Kind      error
	Stage     models.MergeStage
	Dependent models.DependentKind
	Err       error
}

func (e *MergeError) Error() string {
	if e.Kind == ErrMergeInProgress {
		return "Mesclagem em andamento para estes clientes"
	}
	return fmt.Sprintf("%s: %v", stageMessage(e.Stage, e.Dependent), e.Err)
}

func (e *MergeError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

var dependentLabels = map[models.DependentKind]string{
	models.DependentPolicies:     "apólices",
	models.DependentAppointments: "agendamentos",
	models.DependentClaims:       "sinistros",
}

// stageMessage is the operator-facing prefix surfaced in MergeResult.Error.
func stageMessage(stage models.MergeStage, dependent models.DependentKind) string {
	switch stage {
	case models.StageValidate:
		return "Requisição de mesclagem inválida"
	case models.StageLock:
		return "Erro ao bloquear clientes para mesclagem"
	case models.StageFieldUpdate:
		return "Erro ao atualizar dados do cliente principal"
	case models.StageTransferPolicies, models.StageTransferAppointments, models.StageTransferClaims:
		return "Erro ao transferir " + dependentLabels[dependent]
	case models.StageDelete:
		return "Erro ao remover clientes duplicados"
	}
	if dependent != "" {
		return "Erro ao buscar " + dependentLabels[dependent]
	}
	return "Erro ao buscar relacionamentos"
}

func transferStage(kind models.DependentKind) models.MergeStage {
	switch kind {
	case models.DependentPolicies:
		return models.StageTransferPolicies
	case models.DependentAppointments:
		return models.StageTransferAppointments
	default:
		return models.StageTransferClaims
	}
}

func kindForStage(stage models.MergeStage) error {
	switch stage {
	case models.StageValidate:
		return ErrInvalidMerge
	case models.StageLock:
		return ErrLockUnavailable
	case models.StageFieldUpdate:
		return ErrFieldUpdate
	case models.StageTransferPolicies, models.StageTransferAppointments, models.StageTransferClaims:
		return ErrTransfer
	case models.StageDelete:
		return ErrDeletion
	}
	return ErrDependencyRead
}
