package catalogue

import "testing"

func TestAllTypesValidateCanonicalExample(t *testing.T) {
	for _, e := range All() {
		if e.Policy == Forbidden {
			continue
		}
		if e.Example == "" {
			t.Fatalf("type %s has no canonical example", e.Type)
		}
		if err := Validate(e.Type, []string{e.Example}); err != nil {
			t.Errorf("type %s: canonical example %q rejected: %v", e.Type, e.Example, err)
		}
	}
}

func TestAllTypesRejectEmpty(t *testing.T) {
	for _, e := range All() {
		if e.Policy == Forbidden {
			continue
		}
		if err := Validate(e.Type, []string{""}); err == nil {
			t.Errorf("type %s: empty value should be rejected", e.Type)
		}
	}
}

func TestCDSForbidden(t *testing.T) {
	if Writable("CDS") {
		t.Fatal("CDS must not be writable")
	}
	if err := Validate("CDS", []string{"x"}); err == nil {
		t.Fatal("CDS validation should fail")
	}
}

func TestDNSSECWarnTypes(t *testing.T) {
	for _, typ := range []string{"DNSKEY", "DS", "CDNSKEY"} {
		e, ok := Lookup(typ)
		if !ok {
			t.Fatalf("missing catalogue entry for %s", typ)
		}
		if e.Policy != DNSSECWarn {
			t.Errorf("%s should carry DNSSECWarn, got %s", typ, e.Policy)
		}
		if !Writable(typ) {
			t.Errorf("%s should remain writable", typ)
		}
	}
}

func TestHostnameMustBeFQDN(t *testing.T) {
	if err := Validate("MX", []string{"10 mail.example"}); err == nil {
		t.Fatal("non-FQDN MX target should be rejected")
	}
	if err := Validate("MX", []string{"10 mail.example."}); err != nil {
		t.Fatalf("FQDN MX target should be accepted: %v", err)
	}
}

func TestValidateTTLBounds(t *testing.T) {
	if err := ValidateTTL(60); err == nil {
		t.Fatal("ttl below minimum should be rejected")
	}
	if err := ValidateTTL(3600); err != nil {
		t.Fatal("ttl at minimum should be accepted")
	}
	if err := ValidateTTL(86400); err != nil {
		t.Fatal("ttl at maximum should be accepted")
	}
	if err := ValidateTTL(86401); err == nil {
		t.Fatal("ttl above maximum should be rejected")
	}
}

func TestWritableCount(t *testing.T) {
	count := 0
	for _, e := range All() {
		if e.Policy != Forbidden {
			count++
		}
	}
	if count != 37 {
		t.Fatalf("expected 37 writable types, got %d", count)
	}
}
