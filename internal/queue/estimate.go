package queue

import "fmt"

// Kitchen holds the capacity profile used for ticket estimates.
type Kitchen struct {
	MaxSimultaneous int
	BaseTimes       map[PreparationType]int
}

func DefaultKitchen() Kitchen {
	return Kitchen{
		MaxSimultaneous: MaxSimultaneous,
		BaseTimes: map[PreparationType]int{
			PreparationSandwich: SandwichBaseTime,
			PreparationPizza:    PizzaBaseTime,
		},
	}
}

// NewKitchen builds a profile from overrides, falling back to the defaults
// for any missing or non-positive value.
func NewKitchen(maxSimultaneous int, baseTimes map[string]int) (Kitchen, error) {
	k := DefaultKitchen()
	if maxSimultaneous > 0 {
		k.MaxSimultaneous = maxSimultaneous
	}

	for name, seconds := range baseTimes {
		t, err := ParsePreparationType(name)
		if err != nil {
			return Kitchen{}, fmt.Errorf("kitchen base time %q: %w", name, err)
		}
		if seconds > 0 {
			k.BaseTimes[t] = seconds
		}
	}

	return k, nil
}

func (k Kitchen) BaseTime(t PreparationType) (int, error) {
	base, ok := k.BaseTimes[t]
	if !ok {
		return 0, ErrInvalidPreparationType
	}
	return base, nil
}

// EstimateAtPosition returns the estimated seconds for a unit with the given
// zero-based position among the units of its type. The first MaxSimultaneous
// positions are in the batch being prepared; every later position waits one
// base duration per full batch ahead of it.
//
// Enqueue uses the number of active units as the position of the new unit,
// recompute uses the FIFO index of each pending entry.
func (k Kitchen) EstimateAtPosition(t PreparationType, position int) (int, error) {
	base, err := k.BaseTime(t)
	if err != nil {
		return 0, err
	}

	if position < k.MaxSimultaneous {
		return base, nil
	}

	ahead := position - k.MaxSimultaneous + 1
	batches := ceilDiv(ahead, k.MaxSimultaneous)
	return base + batches*base, nil
}

// NextQueueNumber returns the ticket that follows last, wrapping after
// MaxQueueNumber. A nil last means no ticket was ever issued for the type.
func NextQueueNumber(last *int) int {
	if last == nil || *last >= MaxQueueNumber {
		return 0
	}
	return *last + 1
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
