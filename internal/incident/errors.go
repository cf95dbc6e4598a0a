package incident

import (
	"errors"
	"fmt"

	"github.com/xela07ax/pulsemon/internal/domain"
)

// ErrNotFoundOrResolved — инцидент отсутствует или уже разрешен.
var ErrNotFoundOrResolved = errors.New("incident not found or already resolved")

// InvalidTransitionError — отклоненный переход машины состояний.
// Возвращается структурным значением с парой from/to, чтобы API
// мог показать оператору, какой именно переход запрещен.
type InvalidTransitionError struct {
	From domain.IncidentStatus
	To   domain.IncidentStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid incident transition: %s -> %s", e.From, e.To)
}
