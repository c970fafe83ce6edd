// Package testutil provides worker doubles for tests.
//
// FakeLauncher and FakeProcess replace the OS subprocess with an in-memory
// process whose output and exit are driven by the test. RunHelperWorker turns
// a test binary into a scripted line-oriented worker so tests can exercise
// real pipes without an external interpreter.
package testutil
