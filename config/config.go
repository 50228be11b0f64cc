// Package config holds the grove's persistent and runtime configuration:
// the protocol version stored in the meta column (spec.md §9, "Version
// field in the meta column") and the tunables referenced throughout
// spec.md (reference hop cap, AVL rotation allowance). Shaped after the
// teacher's nested, flat-struct config style
// (_teacher/node/config_loader.go's NodeConfig/P2PConfig/RPCConfig), but
// scoped to what a grove actually has — there is no P2P, RPC or mining
// section here, because the grove has no such domain (spec.md §1 places
// networking firmly out of scope).
package config

// ProtocolVersion identifies the on-disk format and operation semantics a
// grove was written with. Operations requested at a version newer than
// CurrentVersion fail with a Version error (spec.md §4.8, §9).
type ProtocolVersion uint32

// CurrentVersion is the newest protocol version this implementation
// understands.
const CurrentVersion ProtocolVersion = 1

// DefaultReferenceHopCap is the default maximum number of hops the
// reference resolver will follow before failing with ReferenceLimit
// (spec.md §3.5).
const DefaultReferenceHopCap = 10

// DefaultRotationAllowance bounds the number of AVL rotations a single
// insert's worst-case cost estimate provisions for (spec.md §4.1).
const DefaultRotationAllowance = 2

// FeatureFlags gates optional behavior that may vary between grove
// instances without requiring a protocol version bump.
type FeatureFlags struct {
	// AllowUntrustedReferenceInsert permits inserting a Reference element
	// whose target does not yet exist, deferring validation to the next
	// batch that sets trust_refresh (spec.md §4.7 phase 1, step 4).
	AllowUntrustedReferenceInsert bool
	// EnableV1Proofs allows prove()/verify() to emit/accept the tagged
	// non-Merk proof envelopes of spec.md §4.5.5. Disabled grove
	// instances only ever produce pure Merk (V0) proofs.
	EnableV1Proofs bool
}

// DefaultFeatureFlags returns the flags a freshly created grove starts
// with.
func DefaultFeatureFlags() FeatureFlags {
	return FeatureFlags{
		AllowUntrustedReferenceInsert: false,
		EnableV1Proofs:                true,
	}
}

// Options configures GroveDb.Open. It is the runtime-construction
// counterpart to the persisted Meta record.
type Options struct {
	// ReferenceHopCap overrides DefaultReferenceHopCap when non-zero.
	ReferenceHopCap int
	// Flags overrides DefaultFeatureFlags when non-nil.
	Flags *FeatureFlags
	// ReadOnly opens the underlying keyspace without permitting mutation.
	ReadOnly bool
}

// HopCap returns the effective reference hop cap for o.
func (o Options) HopCap() int {
	if o.ReferenceHopCap > 0 {
		return o.ReferenceHopCap
	}
	return DefaultReferenceHopCap
}

// FeatureFlagsOrDefault returns o.Flags if set, otherwise the defaults.
func (o Options) FeatureFlagsOrDefault() FeatureFlags {
	if o.Flags != nil {
		return *o.Flags
	}
	return DefaultFeatureFlags()
}

// Meta is the grove-wide state persisted (unprefixed) in the meta column
// (spec.md §6.2).
type Meta struct {
	Version      ProtocolVersion
	Flags        FeatureFlags
	GroveRootKey []byte // meta-column key holding the current grove root hash
}

// DefaultMeta is the Meta record written when a fresh grove is opened.
func DefaultMeta() Meta {
	return Meta{
		Version: CurrentVersion,
		Flags:   DefaultFeatureFlags(),
	}
}
