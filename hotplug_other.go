//go:build !linux

package main

import "errors"

func startHotplug(*service) (func(), error) {
	return nil, errors.New("hotplug monitoring requires linux")
}
