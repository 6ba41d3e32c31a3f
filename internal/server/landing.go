package server

import (
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/afroash/airmon/internal/models"
	"github.com/dustin/go-humanize"
	"github.com/skip2/go-qrcode"
)

//go:embed templates/index.html
var templateFiles embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFiles, "templates/index.html"))

type indexData struct {
	Hostname string
	RoomID   string
	Version  string
	Mode     string
	SSID     string
	Uptime   string
	URL      string
	QRCode   template.URL
}

// HandleIndex serves the landing page. Values refresh from /state in the browser.
func (api *APIHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	data := indexData{RoomID: api.roomID, Mode: models.ModeNone}
	if d := api.deps.Device; d != nil {
		data.Hostname = d.Hostname
		data.Version = d.Version
		data.Uptime = strings.TrimSpace(humanize.RelTime(d.StartTime, d.StartTime.Add(d.Uptime()), "", ""))
	}

	host := data.Hostname + ".local"
	if api.deps.Network != nil {
		nv := api.deps.Network.NetView()
		data.Mode = nv.Mode
		data.SSID = nv.SSID
		if nv.IP != "" {
			host = nv.IP
		}
	}
	if host != ".local" {
		data.URL = fmt.Sprintf("http://%s:%d/", host, api.port)
		if png, err := qrcode.Encode(data.URL, qrcode.Medium, 256); err == nil {
			data.QRCode = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
		} else {
			api.logger.Debug().Err(err).Msg("QR code generation failed")
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		api.logger.Error().Err(err).Msg("template render failed")
	}
}
