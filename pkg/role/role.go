package role

// Role thresholds. A lower id means more privilege, so a role passes every
// check whose threshold is greater than or equal to its own id.
const (
	Admin      = 1
	Supervisor = 2
	Operator   = 3
	Auditor    = 4
)

const Unknown = "Desconocido"

var names = map[int]string{
	Admin:      "ADMIN",
	Supervisor: "SUPERVISOR",
	Operator:   "OPERADOR",
	Auditor:    "AUDITOR",
}

type Holder interface {
	HasPermission(threshold int) bool
	RoleID() (int, bool)
}

type Capabilities struct {
	Admin             bool `json:"admin"`
	SupervisorOrAbove bool `json:"supervisor_or_above"`
	OperatorOrAbove   bool `json:"operator_or_above"`
	Auditor           bool `json:"auditor"`
	AuditorOrBelow    bool `json:"auditor_or_below"`
}

func IsAdmin(h Holder) bool {
	return h.HasPermission(Admin)
}

func IsSupervisorOrAbove(h Holder) bool {
	return h.HasPermission(Supervisor)
}

func IsOperatorOrAbove(h Holder) bool {
	return h.HasPermission(Operator)
}

func IsAuditor(h Holder) bool {
	id, ok := h.RoleID()
	return ok && id == Auditor
}

func IsAuditorOrBelow(h Holder) bool {
	id, ok := h.RoleID()
	return ok && id >= Auditor
}

func CapabilitiesOf(h Holder) Capabilities {
	return Capabilities{
		Admin:             IsAdmin(h),
		SupervisorOrAbove: IsSupervisorOrAbove(h),
		OperatorOrAbove:   IsOperatorOrAbove(h),
		Auditor:           IsAuditor(h),
		AuditorOrBelow:    IsAuditorOrBelow(h),
	}
}

// Name returns the canonical display name for a role id.
func Name(id int) string {
	if n, ok := names[id]; ok {
		return n
	}
	return Unknown
}

func Valid(id int) bool {
	_, ok := names[id]
	return ok
}
