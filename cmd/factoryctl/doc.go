/*
Command factoryctl talks to a running factoryd.

	factoryctl keygen --out alice.key
	factoryctl fee
	factoryctl --signer admin.near --key-file admin.key set-fee --fee 6000
	factoryctl --signer factory.near --key-file factory.key upload-image --image tenant.wasm
	factoryctl --signer alice.near --key-file alice.key register --tenant 7 --referral ref.near
	factoryctl receipt <receipt-id>
	factoryctl account 7.factory.near admin.near
*/
package main
