// Package password hashes and verifies account passwords.
//
// New hashes use bcrypt (cost 10) by default, or argon2id in PHC format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Manager] verifies either format, so a deployment can switch algorithms and
// rehash on the next successful login.
//
// Password policy (length, character classes, reuse) is enforced by the
// engine, not here.
package password
