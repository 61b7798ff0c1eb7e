// Package scanner walks the clinic photo root and classifies patient folders.
//
// Every immediate subdirectory of the root is a patient folder. A folder is
// ready to assemble when its name carries a patient ID, all eight slot photos
// are present and no template has been written yet. It is ready to upload
// when a template exists that the ledger has not recorded as uploaded.
package scanner
