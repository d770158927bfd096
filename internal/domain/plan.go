package domain

// Plan is a declared set of deployment steps
type Plan struct {
	Group string           `yaml:"group"`
	Steps map[string]*Step `yaml:"steps"`
}

// Step deploys one named contract and runs the calls that wire it into the system
type Step struct {
	Name     string        `yaml:"-"`
	Kind     StepKind      `yaml:"kind"`
	Contract string        `yaml:"contract"`
	From     string        `yaml:"from"`
	Args     []any         `yaml:"args"`
	Calls    []Call        `yaml:"calls"`
	Deps     []string      `yaml:"deps"`
	Tags     []string      `yaml:"tags"`
	DevOnly  bool          `yaml:"dev_only"`
	Proxy    *ProxyOptions `yaml:"proxy"`
}

// StepKind selects how a step is executed
type StepKind string

const (
	// StepKindContract deploys a contract from its artifact (the default)
	StepKindContract StepKind = ""
	// StepKindVRFMock deploys and funds a mock VRF coordinator subscription
	StepKindVRFMock StepKind = "vrf_mock"
)

// Call is a post-deploy transaction
type Call struct {
	Target string `yaml:"target"`
	From   string `yaml:"from"`
	Method string `yaml:"method"`
	Args   []any  `yaml:"args"`
}

// ProxyOptions turns a step into an upgrade-safe proxied deployment
type ProxyOptions struct {
	Owner       string   `yaml:"owner"`
	Method      string   `yaml:"method"`
	Args        []any    `yaml:"args"`
	UnsafeAllow []string `yaml:"unsafe_allow"`
}

// ContractName returns the artifact name, defaulting to the step name
func (s *Step) ContractName() string {
	if s.Contract != "" {
		return s.Contract
	}
	return s.Name
}

// Sender returns the role that deploys the step
func (s *Step) Sender() string {
	if s.From != "" {
		return s.From
	}
	return RoleDeployer
}

// HasTag reports whether the step carries any of the given tags; the step name counts as a tag
func (s *Step) HasTag(tags ...string) bool {
	for _, t := range tags {
		if t == s.Name {
			return true
		}
		for _, own := range s.Tags {
			if own == t {
				return true
			}
		}
	}
	return false
}

// Sender returns the role that sends the call
func (c Call) Sender() string {
	if c.From != "" {
		return c.From
	}
	return RoleDeployer
}

// StepOutcome describes what a run did with a step
type StepOutcome string

const (
	StepDeployed StepOutcome = "deployed"
	StepReused   StepOutcome = "reused"
	StepSkipped  StepOutcome = "skipped"
	StepUpgraded StepOutcome = "upgraded"
	StepFailed   StepOutcome = "failed"
)
