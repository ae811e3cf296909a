// Package catalogue holds the static metadata for every writable DNS
// record type the service accepts, plus the validator that checks
// user-supplied RRset content against that metadata before it is ever
// sent over the network.
package catalogue

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/miekg/dns"
)

// PolicyTag classifies how a record type interacts with DNSSEC and
// server-side permission checks.
type PolicyTag string

const (
	Ordinary       PolicyTag = "ordinary"
	DNSSECManaged  PolicyTag = "dnssec_managed"
	DNSSECWarn     PolicyTag = "dnssec_warn"
	Forbidden      PolicyTag = "forbidden"
)

// Entry is one record type's catalogue row.
type Entry struct {
	Type            string
	Label           string
	FormatHint      string
	Example         string
	Tooltip         string
	Regexp          *regexp.Regexp
	Policy          PolicyTag
	HostnameBearing bool // value must be a syntactically valid FQDN ending in "."
}

// TTLMin and TTLMax bound standard-account RRset TTLs (§3).
const (
	TTLMin = 3600
	TTLMax = 86400
)

var entries = buildEntries()

func buildEntries() map[string]Entry {
	hostname := func(t, label, hint, example, tip string) Entry {
		return Entry{Type: t, Label: label, FormatHint: hint, Example: example, Tooltip: tip, Policy: Ordinary, HostnameBearing: true}
	}
	plain := func(t, label, hint, example, tip string, re *regexp.Regexp) Entry {
		return Entry{Type: t, Label: label, FormatHint: hint, Example: example, Tooltip: tip, Policy: Ordinary, Regexp: re}
	}

	m := map[string]Entry{
		"A":          plain("A", "IPv4 address", "a.b.c.d", "192.0.2.1", "An IPv4 address.", regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)),
		"AAAA":       plain("AAAA", "IPv6 address", "IPv6 address", "2001:db8::1", "An IPv6 address.", nil),
		"AFSDB":      plain("AFSDB", "AFS database", "subtype hostname", "1 afs.example.", "AFS cell database location.", nil),
		"APL":        plain("APL", "Address prefix list", "[!]afi:addr/prefix ...", "1:192.0.2.0/24", "Address prefix list entries.", nil),
		"CAA":        plain("CAA", "CA authorization", "flags tag \"value\"", `0 issue "letsencrypt.org"`, "Restricts which CAs may issue certs for this name.", nil),
		"CDNSKEY":    {Type: "CDNSKEY", Label: "Child DNSKEY", FormatHint: "flags protocol algorithm key", Example: "257 3 13 AwEAAbOF...", Tooltip: "Child copy of a DNSKEY for automated DS updates.", Policy: DNSSECWarn},
		"CERT":       plain("CERT", "Certificate", "type key-tag algorithm cert", "PKIX 0 0 MIIB...", "Stores a certificate or CRL.", nil),
		"CNAME":      hostname("CNAME", "Canonical name", "hostname.", "target.example.", "Alias to another hostname; must end in a dot."),
		"DHCID":      plain("DHCID", "DHCP identifier", "base64", "AAIBY2...", "Associates a DHCP client with a name.", nil),
		"DNAME":      hostname("DNAME", "Delegation name", "hostname.", "target.example.", "Redirects an entire subtree; must end in a dot."),
		"DNSKEY":     {Type: "DNSKEY", Label: "DNSSEC key", FormatHint: "flags protocol algorithm key", Example: "257 3 13 AwEAAbOF...", Tooltip: "Public key used to validate RRSIGs.", Policy: DNSSECWarn},
		"DLV":        plain("DLV", "DNSSEC lookaside validation", "key-tag algorithm digest-type digest", "1 13 2 ABCDEF...", "Deprecated lookaside validation record.", nil),
		"DS":         {Type: "DS", Label: "Delegation signer", FormatHint: "key-tag algorithm digest-type digest", Example: "1 13 2 ABCDEF...", Tooltip: "Links a child zone's key to the parent.", Policy: DNSSECWarn},
		"EUI48":      plain("EUI48", "48-bit identifier", "xx-xx-xx-xx-xx-xx", "00-11-22-33-44-55", "48-bit MAC-like identifier.", regexp.MustCompile(`^([0-9a-fA-F]{2}-){5}[0-9a-fA-F]{2}$`)),
		"EUI64":      plain("EUI64", "64-bit identifier", "xx-xx-xx-xx-xx-xx-xx-xx", "00-11-22-33-44-55-66-77", "64-bit MAC-like identifier.", regexp.MustCompile(`^([0-9a-fA-F]{2}-){7}[0-9a-fA-F]{2}$`)),
		"HINFO":      plain("HINFO", "Host info", "\"cpu\" \"os\"", `"Generic-PC" "Linux"`, "Host hardware and OS.", nil),
		"HTTPS":      plain("HTTPS", "HTTPS binding", "priority target params", "1 . alpn=h2", "Service binding for HTTPS.", nil),
		"KX":         hostname("KX", "Key exchanger", "priority hostname.", "10 kx.example.", "Key exchange delegation; target must end in a dot."),
		"L32":        plain("L32", "32-bit locator", "preference locator32", "10 10.1.2.3", "ILNP 32-bit locator.", nil),
		"L64":        plain("L64", "64-bit locator", "preference locator64", "10 2001:db8:1:2::", "ILNP 64-bit locator.", nil),
		"LOC":        plain("LOC", "Location", "d m s N/S d m s E/W alt size hp vp", `51 30 12.748 N 0 7 39.612 W 0.00m`, "Geographic location.", nil),
		"LP":         hostname("LP", "Locator pointer", "preference hostname.", "10 l64.example.", "ILNP locator pointer; target must end in a dot."),
		"MX":         hostname("MX", "Mail exchanger", "priority hostname.", "10 mail.example.", "Mail server for the domain; target must end in a dot."),
		"NAPTR":      plain("NAPTR", "Naming authority pointer", "order pref flags service regex replacement", `100 10 "U" "E2U+sip" "" .`, "Regex-based rewrite rule.", nil),
		"NID":        plain("NID", "Node identifier", "preference node-id", "10 0014:4fff:ff20:ee64", "ILNP node identifier.", nil),
		"NS":         hostname("NS", "Nameserver", "hostname.", "ns1.example.", "Delegates the zone to a nameserver; must end in a dot."),
		"OPENPGPKEY": plain("OPENPGPKEY", "OpenPGP key", "base64", "mDMEXtK...", "OpenPGP public key.", nil),
		"PTR":        hostname("PTR", "Pointer", "hostname.", "host.example.", "Reverse DNS target; must end in a dot."),
		"RP":         plain("RP", "Responsible person", "mbox-dname txt-dname", "admin.example. .", "Responsible-person contact record.", nil),
		"SMIMEA":     plain("SMIMEA", "S/MIME association", "usage selector matching cert", "3 0 0 30820...", "Binds an S/MIME certificate to a name.", nil),
		"SPF":        plain("SPF", "Sender policy framework", "\"v=spf1 ...\"", `"v=spf1 -all"`, "Legacy SPF record; prefer a TXT record.", nil),
		"SRV":        hostname("SRV", "Service locator", "priority weight port target.", "10 5 5060 sip.example.", "Service location record."),
		"SSHFP":      plain("SSHFP", "SSH fingerprint", "algorithm type fingerprint", "4 2 123456...", "SSH host key fingerprint.", nil),
		"SVCB":       plain("SVCB", "Service binding", "priority target params", "1 . alpn=h2", "Generic service binding.", nil),
		"TLSA":       plain("TLSA", "TLS association", "usage selector matching cert", "3 1 1 ABCDEF...", "Binds a TLS certificate to a name.", nil),
		"TXT":        plain("TXT", "Text", "\"text\"", `"v=spf1 -all"`, "Free-form text.", nil),
		"URI":        plain("URI", "URI", "priority weight \"target\"", `10 1 "https://example.com/"`, "Generic URI record.", nil),
		"CDS":        {Type: "CDS", Label: "Child DS", FormatHint: "", Example: "", Tooltip: "Server-managed; cannot be written directly.", Policy: Forbidden},
	}
	return m
}

// Lookup returns the catalogue entry for type, case-insensitively.
func Lookup(recordType string) (Entry, bool) {
	e, ok := entries[strings.ToUpper(recordType)]
	return e, ok
}

// All returns every catalogue entry, including CDS (forbidden).
func All() []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	return out
}

// Writable reports whether a type may be submitted for create/update.
func Writable(recordType string) bool {
	e, ok := Lookup(recordType)
	return ok && e.Policy != Forbidden
}

// Invalid describes why one record value failed validation.
type Invalid struct {
	Index  int
	Reason string
}

func (i Invalid) Error() string {
	return fmt.Sprintf("record %d: %s", i.Index, i.Reason)
}

// ValidateTTL enforces the [TTLMin, TTLMax] bound from §3.
func ValidateTTL(ttl int) error {
	if ttl < TTLMin || ttl > TTLMax {
		return fmt.Errorf("ttl<%d or ttl>%d", TTLMin, TTLMax)
	}
	return nil
}

// Validate checks each record value independently against the catalogue
// entry for recordType. Returns the first Invalid encountered, or nil.
func Validate(recordType string, records []string) error {
	entry, ok := Lookup(recordType)
	if !ok {
		return fmt.Errorf("unknown record type %q", recordType)
	}
	if entry.Policy == Forbidden {
		return fmt.Errorf("record type %q is server-managed and cannot be written", recordType)
	}
	for i, raw := range records {
		v := strings.TrimSpace(raw)
		if v == "" {
			return Invalid{Index: i, Reason: "empty value"}
		}
		if entry.HostnameBearing {
			if err := validateHostnameField(v); err != nil {
				return Invalid{Index: i, Reason: err.Error()}
			}
			continue
		}
		if entry.Regexp != nil {
			if !entry.Regexp.MatchString(v) {
				return Invalid{Index: i, Reason: fmt.Sprintf("does not match expected format %q", entry.FormatHint)}
			}
		}
	}
	return nil
}

// validateHostnameField validates the hostname-shaped tail of a record
// value (e.g. "10 mail.example." for MX) using real DNS name syntax
// rules, and rejects anything not ending in a trailing dot per the
// edit-time FQDN policy (§4.4).
func validateHostnameField(value string) error {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return fmt.Errorf("empty value")
	}
	host := fields[len(fields)-1]
	if !strings.HasSuffix(host, ".") {
		return fmt.Errorf("hostname %q must be fully qualified (end in \".\")", host)
	}
	if host == "." {
		return nil // root
	}
	if _, ok := dns.IsDomainName(host); !ok {
		return fmt.Errorf("hostname %q is not a syntactically valid domain name", host)
	}
	if !dns.IsFqdn(host) {
		return fmt.Errorf("hostname %q is not fully qualified", host)
	}
	return nil
}
