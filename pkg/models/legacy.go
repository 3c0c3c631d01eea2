package models

// LegacyUser is the document shape of the pre-unification collections
// (colaboradores, administradores). Field names follow the old schema
// and are mapped into UserProfile by the migration tool.
type LegacyUser struct {
	Nome   string `firestore:"nome" json:"nome"`
	Email  string `firestore:"email" json:"email"`
	Funcao string `firestore:"funcao,omitempty" json:"funcao,omitempty"`
	Setor  string `firestore:"setor,omitempty" json:"setor,omitempty"`
	Turno  string `firestore:"turno,omitempty" json:"turno,omitempty"`
}
