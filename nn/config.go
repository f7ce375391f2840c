package nn

// FitConfig holds training configuration - ALL fields required
type FitConfig struct {
	Epochs int
}

// CompileConfig holds model compilation settings - ALL fields required
type CompileConfig struct {
	Optimizer Optimizer
	Loss      Loss
	Metrics   []Metric
}

// NetworkConfig for network construction
type NetworkConfig struct {
	Seed int64
}

// ValidateFitConfig checks all required fields are set
func ValidateFitConfig(cfg FitConfig) error {
	if cfg.Epochs <= 0 {
		return errorf("Epochs must be > 0, got %d", cfg.Epochs)
	}
	return nil
}

// ValidateCompileConfig checks all required fields are set
func ValidateCompileConfig(cfg CompileConfig) error {
	if cfg.Optimizer == nil {
		return errorf("Optimizer is required")
	}
	if cfg.Loss == nil {
		return errorf("Loss is required")
	}
	return nil
}
