package group

import (
	"fmt"
	"net/mail"

	"github.com/trezcool/capstone/core"
)

type (
	memberMailData struct {
		Name string
		Role string
	}

	teamMailData struct {
		MemberName  string
		CreatorName string
		GroupName   string
		UseCaseName string
		Role        string
		Members     []memberMailData
	}

	validationMailData struct {
		RecipientName string
		Accepted      bool
		GroupName     string
		Reason        string
	}
)

func teamMessages(tmpl, subject string, grp Group, ucName, creatorName string, members []Member) []*core.EmailMessage {
	roster := make([]memberMailData, 0, len(members))
	for _, m := range members {
		roster = append(roster, memberMailData{Name: m.Name, Role: m.Role})
	}

	msgs := make([]*core.EmailMessage, 0, len(members))
	for _, m := range members {
		if m.Email == "" {
			continue
		}
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: m.Name, Address: m.Email}},
			Subject:      subject,
			TemplateName: tmpl,
			TemplateData: teamMailData{
				MemberName:  m.Name,
				CreatorName: creatorName,
				GroupName:   grp.Name,
				UseCaseName: ucName,
				Role:        m.Role,
				Members:     roster,
			},
		})
	}
	return msgs
}

// notifyAssigned emails every member of an auto-assigned team. Delivery happens in the background.
func (svc *service) notifyAssigned(grp Group, ucName string, members []Member) {
	msgs := teamMessages("team_assigned", fmt.Sprintf("You have been assigned to %s", grp.Name), grp, ucName, "", members)
	if len(msgs) > 0 {
		svc.mailSvc.SendMessages(msgs...)
	}
}

func (svc *service) notifyRegistered(grp Group, ucName, creatorName string, members []Member) {
	msgs := teamMessages("team_registered", "Team registration received", grp, ucName, creatorName, members)
	if len(msgs) > 0 {
		svc.mailSvc.SendMessages(msgs...)
	}
}

func (svc *service) notifyValidated(grp Group, to mail.Address) {
	accepted := grp.Status == StatusAccepted
	subject := "Team registration rejected"
	if accepted {
		subject = "Team registration accepted"
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{to},
		Subject:      subject,
		TemplateName: "team_validated",
		TemplateData: validationMailData{
			RecipientName: to.Name,
			Accepted:      accepted,
			GroupName:     grp.Name,
			Reason:        grp.RejectionReason,
		},
	})
}
