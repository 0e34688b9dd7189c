// Package testutil provides shared test utilities and fixtures for integration tests.
//
// This package contains multi-instance setup code, traffic generators and
// assertion helpers that are used across integration and stress tests.
//
// Note: For NATS server setup, use the github.com/arloliu/vario/testing package.
// This package is specifically for integration test scenarios and helper utilities.
package testutil
