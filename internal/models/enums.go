package models

// EducationLevel is a student's schooling stage.
type EducationLevel string

const (
	LevelPrimary   EducationLevel = "PRIMARY"
	LevelSecondary EducationLevel = "SECONDARY"
	LevelHigh      EducationLevel = "HIGH"
)

// Relationship is how a parent relates to the linked student.
type Relationship string

const (
	RelationFather      Relationship = "FATHER"
	RelationMother      Relationship = "MOTHER"
	RelationBrother     Relationship = "BROTHER"
	RelationSister      Relationship = "SISTER"
	RelationGrandmother Relationship = "GRANDMOTHER"
	RelationGrandfather Relationship = "GRANDFATHER"
	RelationOther       Relationship = "OTHER"
)

// AdminRoleKind is the administrative sub-role of an ADMIN account.
type AdminRoleKind string

const (
	AdminSuper     AdminRoleKind = "super_admin"
	AdminAcademic  AdminRoleKind = "academic_admin"
	AdminSecretary AdminRoleKind = "secretary"
	AdminFinance   AdminRoleKind = "finance"
)

// ManagesAccounts reports whether the sub-role may create and edit accounts.
func (k AdminRoleKind) ManagesAccounts() bool {
	return k == AdminSuper || k == AdminAcademic || k == AdminSecretary
}

const (
	GenderMale   = "M"
	GenderFemale = "F"
)

// MaritalStatus values for teacher registration sheets.
type MaritalStatus string

const (
	MaritalSingle   MaritalStatus = "SINGLE"
	MaritalMarried  MaritalStatus = "MARRIED"
	MaritalDivorced MaritalStatus = "DIVORCED"
	MaritalWidowed  MaritalStatus = "WIDOWED"
)

// TeachingDomain values for teacher registration sheets.
type TeachingDomain string

const (
	DomainScientific TeachingDomain = "SCIENTIFIC"
	DomainLiterary   TeachingDomain = "LITERARY"
)

// CredentialStatus tracks whether generated credentials have been issued for a profile.
type CredentialStatus string

const (
	CredentialPending CredentialStatus = "PENDING"
	CredentialIssued  CredentialStatus = "ISSUED"
)
