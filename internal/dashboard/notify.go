package dashboard

type NotificationType string

const (
	NotifySuccess NotificationType = "success"
	NotifyError   NotificationType = "error"
	NotifyInfo    NotificationType = "info"
)

type Notification struct {
	ID      string           `json:"id"`
	Type    NotificationType `json:"type"`
	Message string           `json:"message"`
}

const (
	msgSaved          = "Sauvegardé"
	msgSaveFailed     = "Erreur sauvegarde: "
	msgConfirmDelete  = "Supprimer ce lead définitivement ?"
	msgDeleteFailed   = "Erreur suppression"
	msgLeadDeleted    = "Lead supprimé"
	msgLeadCreated    = "Lead créé manuellement"
	msgCreateFailed   = "Erreur: "
	msgLoadFailed     = "Erreur de chargement des données"
	msgNewLead        = "Nouveau lead : "
	msgNoteAdded      = "Note ajoutée"
	msgTaskAdded      = "Tâche ajoutée"
	msgExported       = "Export téléchargé"
	msgPartnerAdded   = "Partenaire ajouté"
	msgPartnerFailed  = "Erreur création partenaire"
	msgPartnerDeleted = "Partenaire supprimé"
	msgConfirmPartner = "Supprimer ce partenaire ?"
	msgRateUpdated    = "Taux mis à jour"
	msgRateFailed     = "Erreur mise à jour"
	msgUnassigned     = "Non assigné"
)
