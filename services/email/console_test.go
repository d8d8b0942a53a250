package emailsvc

import (
	"io"
	"log"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/investiga/core"
	logsvc "github.com/trezcool/investiga/services/logger"
)

func newMock() *ConsoleServiceMock {
	conf := &core.Config{
		AppName:          "Investiga",
		FrontendBaseURL:  "http://front.test",
		DefaultFromEmail: mail.Address{Address: "noreply@investiga.test"},
		TestMode:         true,
	}
	return NewConsoleServiceMock(conf, logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf))
}

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	svc := newMock()
	to := mail.Address{Name: "Ana", Address: "ana@uni.cl"}

	svc.SendMessages(
		core.NewDecisionMessage(to, "Beca #3", core.StatusApproved, "felicitaciones", "/scholarships/3"),
		&core.EmailMessage{Subject: "no recipients", BodyStr: "ignored"},
		&core.EmailMessage{To: []mail.Address{to}, Subject: "no content"},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Equal(t, "Beca #3: Aprobada", msg.Subject)
	assert.Contains(t, msg.TextContent, `Tu solicitud "Beca #3" fue revisada.`)
	assert.Contains(t, msg.TextContent, "felicitaciones")
	assert.Contains(t, msg.TextContent, "http://front.test/scholarships/3")
	assert.Contains(t, msg.HTMLContent, "Aprobada")

	svc.Reset()
	assert.Empty(t, svc.SentMessages())
}

func TestConsoleServiceMock_BodyStr(t *testing.T) {
	svc := newMock()
	svc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Address: "ana@uni.cl"}},
		Subject: "Restablecer contraseña",
		BodyStr: "visita el enlace",
	})

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "visita el enlace", sent[0].TextContent)
	assert.Empty(t, sent[0].HTMLContent)
}
