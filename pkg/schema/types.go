package schema

import "fmt"

// Tier identifies a compute location/capability class, from fully offline
// on-device inference (L0) to centralized large-model inference (L3).
type Tier string

const (
	TierL0 Tier = "L0"
	TierL1 Tier = "L1"
	TierL2 Tier = "L2"
	TierL3 Tier = "L3"
)

// Tiers lists every tier in ascending cost order.
var Tiers = []Tier{TierL0, TierL1, TierL2, TierL3}

var tierRanks = map[Tier]int{
	TierL0: 0,
	TierL1: 1,
	TierL2: 2,
	TierL3: 3,
}

// Rank returns the ordinal position of the tier, L0 lowest.
func (t Tier) Rank() int {
	return tierRanks[t]
}

// Valid reports whether the tier is one of L0..L3.
func (t Tier) Valid() bool {
	_, ok := tierRanks[t]
	return ok
}

// Below reports whether t is a cheaper tier than other.
func (t Tier) Below(other Tier) bool {
	return t.Rank() < other.Rank()
}

// ParseTier converts a string into a Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q", s)
	}
	return t, nil
}

// MaxTier returns the more expensive of two tiers.
func MaxTier(a, b Tier) Tier {
	if a.Rank() >= b.Rank() {
		return a
	}
	return b
}

// AnalysisLayer identifies one pass of the cascading analysis pipeline.
type AnalysisLayer int

const (
	Layer1 AnalysisLayer = 1
	Layer2 AnalysisLayer = 2
	Layer3 AnalysisLayer = 3
)

func (l AnalysisLayer) String() string {
	return fmt.Sprintf("layer%d", int(l))
}

// OutputVolumeClass is the classifier's estimate of response length.
type OutputVolumeClass string

const (
	VolumeShort    OutputVolumeClass = "short"
	VolumeMedium   OutputVolumeClass = "medium"
	VolumeLong     OutputVolumeClass = "long"
	VolumeVeryLong OutputVolumeClass = "very_long"
)

// ComplianceFlag is a regulatory category that imposes hard routing
// constraints. Presence of any flag is a constraint, not a soft signal.
type ComplianceFlag string

const (
	ComplianceHIPAA          ComplianceFlag = "HIPAA"
	ComplianceGDPR           ComplianceFlag = "GDPR"
	CompliancePCIDSS         ComplianceFlag = "PCI_DSS"
	ComplianceLegalPrivilege ComplianceFlag = "LEGAL_PRIVILEGE"
	ComplianceITAR           ComplianceFlag = "ITAR"
)

// KnownComplianceFlags lists every flag the engine accepts from
// configuration tables.
func KnownComplianceFlags() []ComplianceFlag {
	return []ComplianceFlag{
		ComplianceHIPAA,
		ComplianceGDPR,
		CompliancePCIDSS,
		ComplianceLegalPrivilege,
		ComplianceITAR,
	}
}

// PIIClass labels a category of personally identifiable information.
type PIIClass string

const (
	PIIHealth     PIIClass = "health"
	PIIFinancial  PIIClass = "financial"
	PIIIdentity   PIIClass = "identity"
	PIIBiometric  PIIClass = "biometric"
	PIICredential PIIClass = "credential"
)

// QualityPreference captures the user's analysis-depth preference.
type QualityPreference string

const (
	QualityDefault  QualityPreference = ""
	QualityFast     QualityPreference = "fast"
	QualityThorough QualityPreference = "thorough"
)
