package eval

import "github.com/danielpatrickdp/affective-core/internal/cognitive"

// #region eval-config
// EvalConfig holds the tier capacities a checkpoint must respect before it
// is saved. Channel values and affinities are always checked against [0,1].
type EvalConfig struct {
	ShortTermMaxSize  int // short tier capacity per memory kind
	MediumTermMaxSize int // medium tier capacity per memory kind
}

// DefaultEvalConfig derives the bounds from the default core configuration.
func DefaultEvalConfig() EvalConfig {
	return ConfigFor(cognitive.DefaultConfig())
}

// ConfigFor derives the bounds from a core configuration.
func ConfigFor(c cognitive.Config) EvalConfig {
	return EvalConfig{
		ShortTermMaxSize:  c.Memory.ShortTermMaxSize,
		MediumTermMaxSize: c.Memory.MediumTermMaxSize,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of checkpoint validation.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// #endregion eval-result
