package common

import (
	"os"
)

const serviceNameDefault = "loopflow"

func GetServiceName() string {
	name := os.Getenv("SERVICE_NAME")
	if name == "" {
		return serviceNameDefault
	}
	return name
}

func GetServiceInstance() string {
	instance := os.Getenv("SERVICE_INSTANCE")
	if instance == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return "unknown"
		}
		return hostname
	}
	return instance
}
