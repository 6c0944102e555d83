package request

type CompleteRegistration struct {
	TenantName  string `json:"tenant_name" validate:"required,min=2,max=64"`
	CompanyName string `json:"company_name,omitempty" validate:"omitempty,max=128"`
	Plan        string `json:"plan,omitempty" validate:"omitempty,oneof=free starter business"`
}
