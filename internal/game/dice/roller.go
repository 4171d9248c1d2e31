package dice

import (
	"crypto/rand"
	"math/big"
	mrand "math/rand"
	"sync"

	"go.uber.org/zap"
)

// Roll evaluates expr with src.
//
// Precondition: expr came from Parse; src is non-nil when expr rolls dice.
// Postcondition: len(result.Dice) == expr.Count.
func Roll(expr Expression, src Source) RollResult {
	faces := make([]int, expr.Count)
	for i := range faces {
		faces[i] = src.Intn(expr.Sides) + 1
	}
	return RollResult{Expression: expr.Raw, Dice: faces, Modifier: expr.Modifier}
}

// Roller rolls expressions and logs each roll at debug level.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewRoller creates a Roller. A nil logger is replaced by a no-op logger.
//
// Precondition: src must be non-nil.
func NewRoller(src Source, logger *zap.Logger) *Roller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Roller{src: src, logger: logger}
}

// Roll evaluates expr and logs the result.
func (r *Roller) Roll(expr Expression) RollResult {
	result := Roll(expr, r.src)
	if !expr.Fixed() {
		r.logger.Debug("dice roll",
			zap.String("expression", result.Expression),
			zap.Ints("dice", result.Dice),
			zap.Float64("modifier", result.Modifier),
			zap.Float64("total", result.Total()),
		)
	}
	return result
}

// RollString parses and rolls s.
func (r *Roller) RollString(s string) (RollResult, error) {
	e, err := Parse(s)
	if err != nil {
		return RollResult{}, err
	}
	return r.Roll(e), nil
}

type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
func NewCryptoSource() Source {
	return cryptoSource{}
}

func (cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("dice: Intn called with n <= 0")
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("dice: crypto/rand failure: " + err.Error())
	}
	return int(v.Int64())
}

type seededSource struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewSeededSource returns a deterministic Source for reproducible scenarios.
func NewSeededSource(seed int64) Source {
	return &seededSource{rng: mrand.New(mrand.NewSource(seed))}
}

func (s *seededSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}
