package hook

import (
	cfg_hook "github.com/pharmbio/pipeline-monitor/pkg/configs/hook"
)

// Build makes a hook from config.
//
// When no URLs are configured, it is None.
func Build[T any](cfg cfg_hook.WebHook) Hook[T, struct{}] {
	if len(cfg.Before) == 0 && len(cfg.After) == 0 {
		return None[T]{}
	}
	return Web[T, struct{}]{
		BeforeURL: cfg.Before,
		AfterURL:  cfg.After,
	}
}
