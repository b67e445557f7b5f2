package leave

// =============================================================================
// KIND POLICY - Which kinds touch the balance and which carry a certificate
// =============================================================================

// KindRule is the per-kind configuration the engine is constructed with.
type KindRule struct {
	DecrementsBalance   bool
	RequiresCertificate bool
}

// KindPolicy maps each kind to its rule. Kinds absent from the map neither
// decrement the balance nor take a certificate.
type KindPolicy map[Kind]KindRule

// DefaultPolicy: annual leave is paid from the balance, sick leave carries a
// certificate and is free.
func DefaultPolicy() KindPolicy {
	return KindPolicy{
		KindAnnual: {DecrementsBalance: true},
		KindSick:   {RequiresCertificate: true},
	}
}

// NewKindPolicy builds a policy from kind lists, as read from configuration.
func NewKindPolicy(balanceKinds, certificateKinds []Kind) KindPolicy {
	p := KindPolicy{}
	for _, k := range balanceKinds {
		rule := p[k]
		rule.DecrementsBalance = true
		p[k] = rule
	}
	for _, k := range certificateKinds {
		rule := p[k]
		rule.RequiresCertificate = true
		p[k] = rule
	}
	return p
}

func (p KindPolicy) Decrements(k Kind) bool { return p[k].DecrementsBalance }

func (p KindPolicy) TakesCertificate(k Kind) bool { return p[k].RequiresCertificate }

// Known reports whether k is a builtin kind or configured in the policy.
func (p KindPolicy) Known(k Kind) bool {
	if _, ok := p[k]; ok {
		return true
	}
	for _, b := range BuiltinKinds {
		if b == k {
			return true
		}
	}
	return false
}
