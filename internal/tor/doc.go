// Package tor starts an embedded Tor daemon for routing scans through the
// Tor network.
//
// The daemon is launched with tornago on OS-assigned ports. Its SOCKS
// listener is exposed as a socks5h proxy URL, which the fetcher accepts like
// any other proxy, so .onion hosts are resolved inside Tor.
//
// Bootstrapping takes up to a few minutes. Callers should Stop the daemon
// when the scan ends.
package tor
