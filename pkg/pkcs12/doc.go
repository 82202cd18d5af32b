// Package pkcs12 implements PKCS#12 (RFC 7292) encoding and decoding.
//
// PKCS#12 is a binary format for storing and transporting X.509 certificates
// and their associated private keys, typically in .p12 or .pfx files as
// exported from the macOS keychain or the Windows certificate store.
//
// # Features
//
//   - Parsing of DER and BER encoded files (BER is normalized to DER first)
//   - PBES2/PBKDF2 with AES-128/192/256-CBC
//   - Legacy PKCS#12 PBE with 3DES and RC2 (40 and 128 bit)
//   - MAC verification with SHA-1 and SHA-2
//   - Byte-oriented API without file I/O
//
// # Passwords
//
// Passwords are plain Go strings. PBES2 feeds them into PBKDF2 as UTF-8,
// the legacy PBE schemes and the MAC use the NUL terminated UTF-16BE form
// returned by BMPPassword. This matches OpenSSL and Windows.
//
// # API Levels
//
// High-Level:
//
//	Decode(data, password) - Parse and extract in one step
//	Encode(bags, password) - Create PKCS#12 with secure defaults
//	EncodeWithOptions(bags, password, opts) - Custom options
//
// Low-Level:
//
//	Parse(data) - PFX structure
//	VerifyMAC(pfx, password) - Verify integrity
//	ParseAuthenticatedSafe(data) - ContentInfos of the authSafe
//	DecryptEncryptedData(ci, password) - EncryptedData safes
//	ParseSafeContents(data) - SafeBags
//	DecryptShroudedKeyBag(bag, password) - PKCS#8 keys
//
// # Structure
//
//	PFX
//	├── Version (3)
//	├── AuthSafe (ContentInfo)
//	│   └── AuthenticatedSafe
//	│       └── [ContentInfo...]
//	│           ├── Data (unencrypted SafeContents)
//	│           └── EncryptedData (encrypted SafeContents)
//	│               └── SafeContents
//	│                   └── [SafeBag...]
//	│                       ├── CertBag
//	│                       ├── PKCS8ShroudedKeyBag (encrypted)
//	│                       ├── KeyBag (unencrypted)
//	│                       └── Attributes (FriendlyName, LocalKeyID)
//	└── MacData (optional integrity check)
//
// # References
//
// RFC 7292: PKCS #12: Personal Information Exchange Syntax v1.1
//
// RFC 8018: PKCS #5: Password-Based Cryptography Specification Version 2.1
//
// RFC 2268: A Description of the RC2(r) Encryption Algorithm
package pkcs12
