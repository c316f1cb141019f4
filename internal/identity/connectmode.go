package identity

// ConnectMode is the inbound connectivity a session actually has, derived
// from its configured listen ports and addresses (spec.md §4.3); NAT
// traversal features are not taken into account. It decides who dials whom
// in connect_to_user.
type ConnectMode int

const (
	ModeUnknown ConnectMode = iota
	ModeActiveV4
	ModeActiveV6
	ModePassive
)

func (m ConnectMode) String() string {
	switch m {
	case ModeActiveV4:
		return "active4"
	case ModeActiveV6:
		return "active6"
	case ModePassive:
		return "passive"
	default:
		return "unknown"
	}
}

func (m ConnectMode) IsActive() bool {
	return m == ModeActiveV4 || m == ModeActiveV6
}

// DeriveConnectMode implements spec.md §4.3's derivation: a session is
// active on an address family if it both has a reachable listen port on
// that family (hasTCP4/hasTCP6, set from local listener state plus any
// manual port-forward override) and an external address for it was
// resolved (ip4/ip6 non-empty). IPv4 is preferred over IPv6 when both are
// active, matching the reference implementation's ADDRESS_FAMILY
// preference order. A session with neither is passive.
func DeriveConnectMode(hasTCP4, hasTCP6 bool, ip4, ip6 string) ConnectMode {
	if hasTCP4 && ip4 != "" {
		return ModeActiveV4
	}
	if hasTCP6 && ip6 != "" {
		return ModeActiveV6
	}
	return ModePassive
}
