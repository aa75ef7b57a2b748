package search

import (
	"time"

	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/models"
)

// Observer receives search events. Calls happen on the engine goroutine.
type Observer interface {
	VariableStarted(v *models.Variable, index, total int)
	AttemptRecorded(v *models.Variable, a models.Attempt)
	ErrorRecorded(e models.ErrorEntry)
	VariableFinished(v *models.Variable)
}

// NopObserver ignores every event; embed it to implement part of Observer
type NopObserver struct{}

func (NopObserver) VariableStarted(*models.Variable, int, int)       {}
func (NopObserver) AttemptRecorded(*models.Variable, models.Attempt) {}
func (NopObserver) ErrorRecorded(models.ErrorEntry)                  {}
func (NopObserver) VariableFinished(*models.Variable)                {}

// Progress is reported after every finished variable
type Progress struct {
	Variable  string
	Done      int
	Total     int
	Elapsed   time.Duration
	Remaining time.Duration
}
