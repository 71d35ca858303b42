package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/vidarx/recovery-backend/internal/models"
)

// AndesPSP reports aprobada/rechazada/pendiente/desconocido in a
// `transaction_state` field with DD/MM/YYYY HH:MM:SS timestamps.
type AndesPSP struct {
	failureRate float64
}

var andesPSPStates = map[models.CanonicalState]string{
	models.StateApproved: "aprobada",
	models.StateDeclined: "rechazada",
	models.StatePending:  "pendiente",
	models.StateUnknown:  "desconocido",
}

func (g *AndesPSP) Name() string { return "andespsp" }

func (g *AndesPSP) Query(ctx context.Context, transactionID string, realState models.CanonicalState) (RawResponse, error) {
	if err := simulateLatency(ctx, g.Name()); err != nil {
		return nil, err
	}
	if shouldFail(g.failureRate) {
		return nil, fmt.Errorf("andespsp: error de conexion: %w", ErrUnavailable)
	}

	state, ok := andesPSPStates[realState]
	if !ok {
		state = "desconocido"
	}
	code, msg := "99", "Ver codigo"
	if state == "aprobada" {
		code, msg = "00", "Aprobado"
	}
	return RawResponse{
		"transaccion_id":    transactionID,
		"transaction_state": state,
		"fecha_hora":        time.Now().UTC().Format("02/01/2006 15:04:05"),
		"procesador":        "AndesPSP",
		"codigo_respuesta":  code,
		"mensaje":           msg,
	}, nil
}
