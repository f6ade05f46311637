package i18n

import "testing"

func TestGetCatalogFallback(t *testing.T) {
	base := GetCatalog("en-US")
	if base == nil {
		t.Fatal("expected base catalog")
	}
	if fallback := GetCatalog("zz-ZZ"); fallback != base {
		t.Fatalf("expected fallback to en-US catalog, got %q", fallback.Locale())
	}
	if empty := GetCatalog(""); empty != base {
		t.Fatal("expected empty locale to resolve to en-US")
	}
}

func TestGetCatalogMatchesAcceptLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "pt-BR", want: "pt-BR"},
		{in: "pt", want: "pt-BR"},
		{in: "pt-BR,pt;q=0.9,en;q=0.8", want: "pt-BR"},
		{in: "en-GB", want: "en-US"},
		{in: "fr-FR;q=0.9", want: "en-US"},
	}
	for _, tc := range tests {
		if got := GetCatalog(tc.in).Locale(); got != tc.want {
			t.Fatalf("GetCatalog(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEveryLocaleCoversEnglishCodes(t *testing.T) {
	for code := range enUS {
		if _, ok := ptBR[code]; !ok {
			t.Fatalf("pt-BR catalog missing %s", code)
		}
	}
}

func TestFormatFallbacks(t *testing.T) {
	cat := NewCatalog("test", map[Code]string{
		"code": "hello {{.Name}}",
	})

	if cat.Format("unknown", nil) != "unknown" {
		t.Fatal("expected code fallback when template missing")
	}
	if got := cat.Format("code", nil); got != "hello " {
		t.Fatalf("expected missing metadata to render empty, got %q", got)
	}
	if got := cat.Format("code", map[string]string{"Name": "Ana"}); got != "hello Ana" {
		t.Fatalf("Format = %q", got)
	}
}

func TestFormatTemplateErrorFallback(t *testing.T) {
	cat := NewCatalog("test", map[Code]string{
		"code": "{{ if .Name }}",
	})
	if cat.Format("code", map[string]string{"Name": "X"}) != "{{ if .Name }}" {
		t.Fatal("expected template fallback on parse error")
	}
}

func TestFormatTemplateExecutionErrorFallback(t *testing.T) {
	cat := NewCatalog("test", map[Code]string{
		"code": "{{ call .Name }}",
	})
	if cat.Format("code", map[string]string{"Name": "X"}) != "{{ call .Name }}" {
		t.Fatal("expected template fallback on execute error")
	}
}

func TestRegisterCatalog(t *testing.T) {
	custom := NewCatalog("de-DE", map[Code]string{"code": "ok"})
	RegisterCatalog("de-DE", custom)
	if got := GetCatalog("de-DE"); got != custom {
		t.Fatal("expected registered catalog")
	}
	if got := GetCatalog("de"); got != custom {
		t.Fatalf("expected matcher to pick registered catalog, got %q", got.Locale())
	}
}
