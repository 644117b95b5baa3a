package apperr

import (
	"fmt"
	"strings"
)

// Bad request.

// UserWithEmailExists rejects a registration for an address already in use.
func UserWithEmailExists(email string) *Error {
	return BadRequest("USER_WITH_EMAIL_IS_ALREADY_EXISTS", fmt.Sprintf("User with email %s already exists.", email))
}

// InvalidCredentials hides whether the email or the password was wrong. Logout
// returns it for a refresh token missing from the allowlist.
func InvalidCredentials() *Error {
	return BadRequest("INVALID_CREDENTIALS", "Invalid credentials.")
}

// InvalidOTP rejects a passcode that is wrong or expired.
func InvalidOTP() *Error {
	return BadRequest("INVALID_OTP", "Invalid OTP.")
}

// OldPasswordIncorrect is returned by password change.
func OldPasswordIncorrect() *Error {
	return BadRequest("OLD_PASSWORD_INCORRECT", "The old password you entered is incorrect.")
}

// InviteExpired rejects acceptance after validUntil.
func InviteExpired() *Error {
	return BadRequest("INVITE_DATE_IS_EXPIRED", "Invite date is expired.")
}

// InviteAlreadyAccepted rejects a second acceptance.
func InviteAlreadyAccepted() *Error {
	return BadRequest("INVITE_ALREADY_ACCEPTED", "Invite already accepted.")
}

// InviteAlreadySent rejects an email invite while a pending one exists.
func InviteAlreadySent() *Error {
	return BadRequest("INVITE_ALREADY_SENDED", "Invite already sended.")
}

// UserAlreadyLinked rejects accepting an invite into a company the user
// already belongs to.
func UserAlreadyLinked() *Error {
	return BadRequest("USER_ALREADY_LINKED", "User already linked to this company.")
}

// CannotChangeCompany rejects switching to a company without a live
// membership.
func CannotChangeCompany() *Error {
	return BadRequest("CANNOT_CHANGE_COMPANY", "Cannot change company.")
}

// CannotChangeOwnRole rejects a role change aimed at the caller.
func CannotChangeOwnRole() *Error {
	return BadRequest("CANNOT_CHANGE_ROLE_FOR_YOURSELF", "Cannot change role for yourself.")
}

// UserAlreadyHasRole rejects a no-op role change.
func UserAlreadyHasRole(role string) *Error {
	return BadRequest("USER_ALREADY_HAS_THIS_ROLE", fmt.Sprintf("User already has this role: %s.", role))
}

// CannotBlockYourself rejects self-blocking.
func CannotBlockYourself() *Error {
	return BadRequest("CANNOT_BLOCK_YOURSELF", "Cannot block yourself.")
}

// CannotUnblockYourself rejects self-unblocking.
func CannotUnblockYourself() *Error {
	return BadRequest("CANNOT_UNBLOCK_YOURSELF", "Cannot unblock yourself.")
}

// UserAlreadyBlocked rejects blocking a blocked member.
func UserAlreadyBlocked() *Error {
	return BadRequest("USER_ALREADY_BLOCKED", "User already blocked.")
}

// UserAlreadyUnblocked rejects unblocking an active member.
func UserAlreadyUnblocked() *Error {
	return BadRequest("USER_ALREADY_UNBLOCKED", "User already unblocked.")
}

// CannotUpdateUserOfOtherCompany rejects member management across tenants.
func CannotUpdateUserOfOtherCompany() *Error {
	return BadRequest("CANNOT_UPDATE_USER_DATA_FROM_OTHER_COMPANY", "Cannot update user data from other company.")
}

// CannotChangeOwnData rejects member management aimed at the caller.
func CannotChangeOwnData() *Error {
	return BadRequest("CANNOT_CHANGE_OWN_DATA", "Cannot change own data.")
}

// CannotChangeOwnerData protects the OWNER membership from managers.
func CannotChangeOwnerData() *Error {
	return BadRequest("CANNOT_CHANGE_OWNER_DATA", "Cannot change owner data.")
}

// CannotChangeDataOfDifferentUser rejects editing another user's record.
func CannotChangeDataOfDifferentUser() *Error {
	return BadRequest("CANNOT_CHANGE_DATA_OF_DIFFERENT_USER", "Cannot change data of different user.")
}

// InviteEmailMismatch rejects accepting an email invite with another address.
func InviteEmailMismatch() *Error {
	return BadRequest("INVITE_EMAIL_NOT_MATCH", "Invite email not match.")
}

// InviteCannotRefresh rejects refreshing a pending or accepted invite.
func InviteCannotRefresh() *Error {
	return BadRequest("INVITE_CANNOT_REFRESH", "Invite can be refreshed only when its status is REJECTED or EXPIRED.")
}

// InviteCannotRefreshNoEmail rejects refreshing a link invite.
func InviteCannotRefreshNoEmail() *Error {
	return BadRequest("INVITE_CANNOT_REFRESH_NO_EMAIL", "Invite without email cannot be refreshed.")
}

// CannotUpdateOtherCompany rejects edits to a company other than the
// caller's current one.
func CannotUpdateOtherCompany() *Error {
	return BadRequest("CANNOT_UPDATE_INFO_OF_OTHER_COMPANY", "Cannot update info of other company.")
}

// CannotDeleteNoteOfOther rejects deleting a note the caller does not own.
func CannotDeleteNoteOfOther() *Error {
	return BadRequest("CAN_NOT_DELETE_MEETING_NOTE_OWNED_BY_OTHER", "Can not delete meeting note owned by other.")
}

// CannotDeleteRecurringOfOther rejects deleting a series the caller does
// not own.
func CannotDeleteRecurringOfOther() *Error {
	return BadRequest("CAN_NOT_DELETE_RECURRING_OWNED_BY_OTHER", "Can not delete recurring owned by other.")
}

// CompanyNameUsed rejects a duplicate company name.
func CompanyNameUsed() *Error {
	return BadRequest("COMPANY_NAME_ALREADY_USED", "Company name already used.")
}

// LabelNameExists rejects a duplicate label name within a company.
func LabelNameExists() *Error {
	return BadRequest("LABEL_NAME_ALREADY_EXISTS", "Label name already exists.")
}

// UserGroupNameExists rejects a duplicate group name within a company.
func UserGroupNameExists() *Error {
	return BadRequest("USERS_GROUP_NAME_ALREADY_EXISTS", "Users group name already exists.")
}

// LabelNotExists rejects label ids that do not belong to the company.
func LabelNotExists() *Error {
	return BadRequest("LABEL_NOT_EXISTS", "Label not exists.")
}

// NoAssetsWithTranscription rejects summarising a note with nothing to read.
func NoAssetsWithTranscription() *Error {
	return BadRequest("NO_ASSETS_WITH_VALID_TRANSCRIPTION", "No assets with a valid transcription were found.")
}

// InvalidDates rejects an end date that is not after the start date.
func InvalidDates() *Error {
	return BadRequest("INVALID_DATES", "Invalid startDate or endDate")
}

// InvalidStartDatePeriod rejects an unparsable series window start.
func InvalidStartDatePeriod() *Error {
	return BadRequest("INVALID_STARTDATE_PERIOD", "Invalid startDatePeriod")
}

// InvalidEndDatePeriod rejects an unparsable series window end.
func InvalidEndDatePeriod() *Error {
	return BadRequest("INVALID_ENDDATE_PERIOD", "Invalid endDatePeriod")
}

// IncorrectPeriodDates rejects a series window whose start is after its end.
func IncorrectPeriodDates() *Error {
	return BadRequest("INCORRECT_PERIOD_DATES", "startDatePeriod must be before endDatePeriod")
}

// FailedCreateRecurring is returned when a series cannot be stored.
func FailedCreateRecurring() *Error {
	return BadRequest("FAILED_CREATE_RECURRING", "Failed to create recurring chain")
}

// FailedUpdateRecurring is returned when a series update is rolled back.
func FailedUpdateRecurring() *Error {
	return BadRequest("FAILED_UPDATE_RECURRING", "Failed to update recurring chain")
}

// InvalidRRule rejects recurrence text the rrule parser refuses.
func InvalidRRule() *Error {
	return BadRequest("INVALID_RRULE_OPTIONS", "Invalid RRule options")
}

// UsersAlreadyInCompany lists invitees that are already members.
func UsersAlreadyInCompany(emails []string) *Error {
	return BadRequest("USERS_ALREADY_IN_COMPANY",
		"These users are already members of this current space: "+strings.Join(emails, ", "))
}

// InvalidFileType rejects an upload outside the allowed MIME types.
func InvalidFileType() *Error {
	return BadRequest("INVALID_FILE_TYPE", "File type is not allowed.")
}

// FileTooLarge rejects an upload above the size limit.
func FileTooLarge() *Error {
	return BadRequest("FILE_TOO_LARGE", "File exceeds the maximum allowed size.")
}

// AssetNotReady rejects reading an asset whose upload has not completed.
func AssetNotReady() *Error {
	return BadRequest("ASSET_NOT_READY", "Asset upload is not completed.")
}

// FileStorageNotFound is returned when a confirmed upload is missing from
// the bucket.
func FileStorageNotFound() *Error {
	return BadRequest("FILE_STORAGE_NOT_FOUND", "File storage not found.")
}

// Validation is a BadRequest for malformed input that has no catalog entry.
func Validation(msg string) *Error {
	return BadRequest("VALIDATION_FAILED", msg)
}

// Not found.

// UsersNotFound optionally lists the ids that did not resolve.
func UsersNotFound(ids ...string) *Error {
	msg := "Users not found. "
	if len(ids) > 0 {
		msg += "IDs: " + strings.Join(ids, ", ")
	}
	return NotFound("USER_NOT_FOUND", msg)
}

// CompanyNotFound is returned for an unknown company id.
func CompanyNotFound() *Error {
	return NotFound("COMPANY_NOT_FOUND", "Company not found.")
}

// InviteNotFound is returned for an unknown invite id or token.
func InviteNotFound() *Error {
	return NotFound("INVITE_NOT_FOUND", "Invite not found.")
}

// MeetingNoteNotFound also hides notes of other companies.
func MeetingNoteNotFound() *Error {
	return NotFound("MEETING_NOTE_NOT_FOUND", "Meeting note not found.")
}

// AssetNotFound is returned for an unknown asset id.
func AssetNotFound() *Error {
	return NotFound("ASSET_NOT_FOUND", "Asset not found.")
}

// AssetNotLinked is returned for an asset that exists but belongs to no
// meeting note.
func AssetNotLinked() *Error {
	return NotFound("ASSET_NOT_LINKED", "Asset not found or not associated with any meeting note.")
}

// TranscriptionNotAvailable is returned for an asset without segments.
func TranscriptionNotAvailable() *Error {
	return NotFound("TRANSCRIPTION_NOT_AVAILABLE", "Structured transcription is not available for this asset.")
}

// LabelNotFound is returned for an unknown label id.
func LabelNotFound() *Error {
	return NotFound("LABEL_NOT_FOUND", "Label not found.")
}

// UserGroupNotFound is returned for an unknown group id.
func UserGroupNotFound() *Error {
	return NotFound("USERS_GROUP_NOT_EXISTS", "Users group not exists.")
}

// CommentNotFound is returned for an unknown comment id.
func CommentNotFound() *Error {
	return NotFound("MEETING_COMMENTS_NOT_FOUND", "Comment not found")
}

// ParentCommentNotFound rejects a reply to a comment of another note.
func ParentCommentNotFound() *Error {
	return NotFound("PARENT_MEETING_COMMENTS_NOT_FOUND", "Parent comment not found")
}

// NoFieldsToUpdate rejects an empty update body.
func NoFieldsToUpdate() *Error {
	return NotFound("NO_FIELDS_TO_UPDATE", "No fields to update")
}

// RecurringMeetingNotFound also hides series of other companies.
func RecurringMeetingNotFound() *Error {
	return NotFound("RECURRING_MEETING_NOT_FOUND", "Recurring meeting not found or access denied.")
}

// NoMeetingsFound is returned when a series window selects no notes.
func NoMeetingsFound() *Error {
	return NotFound("NO_MEETINGS_FOUND", "No meeting notes found for this recurring meeting or for provided period.")
}

// PublicNoteNotFound covers unknown, disabled and expired public slugs.
func PublicNoteNotFound() *Error {
	return NotFound("PUBLIC_MEETING_NOTE_NOT_FOUND", "Public meeting note not found or access has expired.")
}

// NoOccurrences is returned when a recurrence rule expands to nothing.
func NoOccurrences() *Error {
	return NotFound("NO_OCCURRENCES_TO_CREATE_MEETINGS", "No occurrences generated for given recurring settings")
}

// Forbidden.

// UserBlocked rejects a member blocked in the current company.
func UserBlocked() *Error {
	return Forbidden("USER_BLOCKED", "User blocked.")
}

// UserDeleted rejects a removed member or a deleted account.
func UserDeleted() *Error {
	return Forbidden("USER_DELETED", "User deleted.")
}

// EmailNotConfirmed guards every authenticated route until verification.
func EmailNotConfirmed() *Error {
	return Forbidden("USER_EMAIL_NOT_CONFIRMED", "User email not confirmed.")
}

// NotAllowedMeetingNote is returned when the caller cannot see a note.
func NotAllowedMeetingNote() *Error {
	return Forbidden("USER_NOT_ALLOWED_MEETING_NOTE", "You do not have permission to access this meeting note.")
}

// NotAllowed is the role guard's rejection.
func NotAllowed() *Error {
	return Forbidden("USER_NOT_ALLOWED", "You do not have permission to access this resource.")
}

// RegistrationEmailNotAllowed rejects addresses outside the configured
// allowlist.
func RegistrationEmailNotAllowed() *Error {
	return Forbidden("REGISTRATION_EMAIL_NOT_ALLOWED",
		"Access denied. Registration or Log in is restricted to authorized emails.")
}

// NotYourComment rejects editing or deleting another author's comment.
func NotYourComment() *Error {
	return Forbidden("USER_NOT_ALLOWED_MEETING_COMMENT", "Not your comment")
}

// DontHaveAccess rejects sharing a note the caller did not write and
// deleting an asset linked to no note.
func DontHaveAccess() *Error {
	return Forbidden("DONT_HAVE_ACCESS", "You don't have access to this resource.")
}

// AccessDenied rejects deleting an asset of another author's note.
func AccessDenied() *Error {
	return Forbidden("ACCESS_DENIED", "Access denied.")
}

// CannotEditNoteOfOther rejects an update the edit policy refuses.
func CannotEditNoteOfOther() *Error {
	return Forbidden("CANNOT_CHANGE_DATA_OF_DIFFERENT_USER", "Cannot change data of different user.")
}

// Unauthorized.

// InvalidRefreshToken covers bad signatures, expiry and consumed tokens.
func InvalidRefreshToken() *Error {
	return Unauthorized("INVALID_REFRESH_TOKEN", "Invalid refresh token.")
}

// InvalidAccessToken covers bad signatures and expired access tokens.
func InvalidAccessToken() *Error {
	return Unauthorized("INVALID_TOKEN", "Access token is invalid or expired.")
}

// Conflict.

// SummaryInProgress is returned while another request holds the summary lock.
func SummaryInProgress() *Error {
	return Conflict("SUMMARY_GENERATION_IN_PROGRESS", "Summary generation for these inputs is already running.")
}

// Internal.

// SummarizationFailed hides model and decoding failures from clients.
func SummarizationFailed() *Error {
	return Internal("SUMMARIZATION_FAILED", "Summarization failed due to an internal error.")
}

// SummarizationTemplateNotFound is returned for a meeting type without a
// prompt template.
func SummarizationTemplateNotFound(template string) *Error {
	return Internal("SUMMARIZATION_TEMPLATE_NOTFOUND", fmt.Sprintf("Summarization template %s not found.", template))
}
