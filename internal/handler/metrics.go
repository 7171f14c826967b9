package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecomstudio_registrations_total",
		Help: "Total number of successful user registrations.",
	})
	loginsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecomstudio_logins_total",
		Help: "Total number of successful logins.",
	})
	uploadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecomstudio_image_uploads_total",
		Help: "Total number of images uploaded to the library.",
	})
	spreadsheetImportsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecomstudio_spreadsheet_imports_total",
		Help: "Total number of successful spreadsheet imports.",
	})
)
