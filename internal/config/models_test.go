package config_test

import (
	"testing"

	"github.com/PabloGalante/docchat/internal/config"
)

func TestModelRegistry(t *testing.T) {
	if !config.IsValidModel("gemini-2.0-flash-001") {
		t.Fatal("expected gemini-2.0-flash-001 to be valid")
	}
	if config.IsValidModel("not-a-real-model") {
		t.Fatal("expected not-a-real-model to be invalid")
	}

	if loc := config.ModelLocation("gemini-1.5-flash-002"); loc != config.LocationAsiaSoutheast {
		t.Fatalf("expected %s, got %s", config.LocationAsiaSoutheast, loc)
	}
	if loc := config.ModelLocation("gemini-2.0-flash-001"); loc != config.LocationGlobal {
		t.Fatalf("expected %s, got %s", config.LocationGlobal, loc)
	}
	if loc := config.ModelLocation("nope"); loc != "" {
		t.Fatalf("expected empty location for unknown model, got %s", loc)
	}

	if !config.IsValidModel(config.FallbackModel) {
		t.Fatal("fallback model must be in the registry")
	}
}

func TestAllModels(t *testing.T) {
	models := config.AllModels()
	if len(models) != 6 {
		t.Fatalf("expected 6 models, got %d", len(models))
	}
	for _, m := range models {
		if m.Location == "" {
			t.Fatalf("model %s has no location", m.Model)
		}
	}
}
