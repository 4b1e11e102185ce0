package email

import "fmt"

const invitationSubject = "Invitation to MyWill"

// Invitation builds the message sent to a trusted person who has no account yet.
func Invitation(ownerEmail, inviteeEmail string) (subject, body string) {
	first, _ := DeriveNameFromEmail(inviteeEmail)
	body = fmt.Sprintf(
		"Hello %s,\n\n"+
			"%s has added you as a trusted person on MyWill.\n"+
			"MyWill stores wills and opens them to the chosen recipients once the author's death is confirmed.\n"+
			"Please register with this address so you can confirm a death and read wills shared with you.\n",
		first, ownerEmail,
	)
	return invitationSubject, body
}
